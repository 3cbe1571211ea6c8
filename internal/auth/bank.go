package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/pscheid92/hitcatch/internal/domain"
)

// Bank is the authoritative in-memory map of username to account, backed by a
// single JSON document that is read and written wholesale.
//
// Other components hold usernames only and resolve through the bank; Get and
// GetAll hand out copies so callers never share mutable account state.
type Bank struct {
	fs     afero.Fs
	path   string
	clock  clockwork.Clock
	margin time.Duration

	mu    sync.RWMutex
	users map[string]*domain.Account
}

func NewBank(fs afero.Fs, path string, clock clockwork.Clock, margin time.Duration) *Bank {
	return &Bank{
		fs:     fs,
		path:   path,
		clock:  clock,
		margin: margin,
		users:  make(map[string]*domain.Account),
	}
}

// Load replaces the in-memory map from the durable document, creating an
// empty document first if none exists. Malformed data is fatal: the bot must
// not run with a silently empty account set.
func (b *Bank) Load() error {
	exists, err := afero.Exists(b.fs, b.path)
	if err != nil {
		return fmt.Errorf("failed to check accounts file: %w", err)
	}
	if !exists {
		if err := afero.WriteFile(b.fs, b.path, []byte("{}"), 0o600); err != nil {
			return fmt.Errorf("failed to create accounts file: %w", err)
		}
	}

	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		return fmt.Errorf("failed to read accounts file: %w", err)
	}

	users := make(map[string]*domain.Account)
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("accounts file is corrupt: %w", err)
	}

	// The document is keyed by username; trust the key over the field so a
	// hand-edited file cannot introduce a mismatch.
	for username, acc := range users {
		acc.Username = username
	}

	b.mu.Lock()
	b.users = users
	b.mu.Unlock()

	return nil
}

// Save writes the whole map to the durable document. The write goes to a
// temporary file first and is renamed into place, so readers never observe a
// partial document.
func (b *Bank) Save() error {
	b.mu.RLock()
	data, err := json.MarshalIndent(b.users, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to serialize accounts: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace accounts file: %w", err)
	}
	return nil
}

// Add inserts a new account with default settings and no token. It does not
// persist unless persist is true.
func (b *Bank) Add(username, password, discordID string, persist bool) (domain.Account, error) {
	b.mu.Lock()
	if _, ok := b.users[username]; ok {
		b.mu.Unlock()
		return domain.Account{}, domain.ErrUserExists
	}

	acc := &domain.Account{
		Username:  username,
		Password:  password,
		DiscordID: discordID,
		Settings:  domain.DefaultSettings(),
	}
	b.users[username] = acc
	b.mu.Unlock()

	if persist {
		if err := b.Save(); err != nil {
			return *acc, err
		}
	}
	return *acc, nil
}

// Remove deletes an account and persists immediately.
func (b *Bank) Remove(username string) error {
	b.mu.Lock()
	if _, ok := b.users[username]; !ok {
		b.mu.Unlock()
		return domain.ErrUserNotFound
	}
	delete(b.users, username)
	b.mu.Unlock()

	return b.Save()
}

// Get returns a copy of the account, if present.
func (b *Bank) Get(username string) (domain.Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	acc, ok := b.users[username]
	if !ok {
		return domain.Account{}, false
	}
	return *acc, true
}

// GetAll returns copies of all accounts, ordered by username.
func (b *Bank) GetAll() []domain.Account {
	b.mu.RLock()
	out := make([]domain.Account, 0, len(b.users))
	for _, acc := range b.users {
		out = append(out, *acc)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// GetByDiscordID finds the account linked to a chat platform handle.
// Linear scan; the store holds tens to low hundreds of accounts.
func (b *Bank) GetByDiscordID(discordID string) (domain.Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, acc := range b.users {
		if acc.DiscordID == discordID {
			return *acc, true
		}
	}
	return domain.Account{}, false
}

// UpdateToken stores a freshly minted token and recomputes the expiry from
// its embedded claim. An empty token clears both fields, keeping the
// both-or-neither invariant. Returns the new expiry (epoch seconds, 0 if
// none) for scheduling.
func (b *Bank) UpdateToken(username, token string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.users[username]
	if !ok {
		return 0, domain.ErrUserNotFound
	}

	if token == "" {
		acc.Token = ""
		acc.ExpiresAt = 0
		return 0, nil
	}

	acc.Token = token
	acc.ExpiresAt = tokenExpiry(token)
	return acc.ExpiresAt, nil
}

// UpdateSettings applies fn to the account's settings under the lock.
func (b *Bank) UpdateSettings(username string, fn func(*domain.AccountSettings)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&acc.Settings)
	return nil
}

// Count returns the number of known accounts.
func (b *Bank) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users)
}

// IsTokenExpired reports whether a token is expired or will expire within the
// refresh margin. Tokens without a decodable expiry claim count as expired.
func (b *Bank) IsTokenExpired(token string) bool {
	exp := tokenExpiry(token)
	if exp == 0 {
		return true
	}
	return exp < b.clock.Now().Add(b.margin).Unix()
}

// tokenExpiry decodes the exp claim of a bearer token without verifying the
// signature. The token is opaque otherwise; this is the only place it is
// parsed. Returns 0 when no expiry can be decoded.
func tokenExpiry(token string) int64 {
	if token == "" {
		return 0
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return 0
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Unix()
}
