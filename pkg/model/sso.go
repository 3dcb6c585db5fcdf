package model

import "time"

// AuthInfo is the best-effort result of getSSOAuthInfo: either a usable
// SSO redirect plus nonce, or the zero value on any failure.
type AuthInfo struct {
	URL       string
	Nonce     string
	State     string
	ExpiresAt time.Time
}

// Empty reports whether this is the zero-value "no SSO info available"
// result that callers must treat as "try again later" rather than an error.
func (a AuthInfo) Empty() bool {
	return a.URL == "" && a.Nonce == ""
}
