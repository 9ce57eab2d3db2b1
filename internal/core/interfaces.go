package core

// SessionStore defines the interface for the client-local session state:
// the bearer token and the cached user profile. Implementations must fail
// soft on corrupt stored data, reporting it as absent rather than erroring.
type SessionStore interface {
	Token() (string, bool)
	SetToken(token string) error
	ClearToken() error

	CachedUser() (*User, bool)
	SetCachedUser(user *User) error
	ClearCachedUser() error
}
