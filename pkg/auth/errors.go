package auth

import "errors"

var (
	// ErrMissingCredentials is returned when the username or password is empty
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrAddUserNotSupported is returned by AddUser under the reject policy
	ErrAddUserNotSupported = errors.New("adding users is not supported, register on Bitbucket instead")
)
