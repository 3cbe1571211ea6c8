// Package radio is the HTTP client for the station's consumer API.
package radio
