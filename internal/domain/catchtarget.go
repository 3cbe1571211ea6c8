package domain

// CatchTarget tracks which accounts are eligible to catch a specific track.
// It is not safe for concurrent use; the owning evaluator synchronizes access.
type CatchTarget struct {
	TrackInfo
	users map[string]struct{}
}

func NewCatchTarget(track TrackInfo) *CatchTarget {
	return &CatchTarget{
		TrackInfo: track,
		users:     make(map[string]struct{}),
	}
}

func (t *CatchTarget) AddUser(username string) {
	t.users[username] = struct{}{}
}

func (t *CatchTarget) RemoveUser(username string) {
	delete(t.users, username)
}

func (t *CatchTarget) HasUser(username string) bool {
	_, ok := t.users[username]
	return ok
}

// Users returns the subscribed usernames in unspecified order.
func (t *CatchTarget) Users() []string {
	out := make([]string, 0, len(t.users))
	for u := range t.users {
		out = append(out, u)
	}
	return out
}

func (t *CatchTarget) UserCount() int {
	return len(t.users)
}
