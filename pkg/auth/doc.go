// Package auth authenticates registry users against Bitbucket Cloud and
// returns the teams they are authorized for.
//
// # Overview
//
// An Authenticator combines three pieces:
//
//	allow.Table               - which teams (and roles) grant access
//	bitbucket.Client          - resolves the user's team memberships
//	cache.CredentialCache     - optional, skips the upstream round trips
//
// # Authentication Flow
//
//	teams, err := authenticator.Authenticate(ctx, "alice..example.com", password)
//
//  1. The cache is consulted by the username exactly as supplied. A verified
//     hit returns the stored team list without contacting Bitbucket.
//  2. Otherwise the username is normalized ("alice..example.com" becomes
//     "alice@example.com") and the memberships for every role are fetched.
//  3. Memberships are filtered through the allow table.
//  4. The result, including an empty one, is cached under a bcrypt proof of
//     the password.
//
// An upstream failure yields (nil, err). A user in no allowed team yields an
// empty, non-nil slice and a nil error.
//
// # Callback Boundary
//
// Hosts using completion callbacks wrap the Authenticator in a Plugin:
//
//	plugin := auth.NewPlugin(authenticator)
//	plugin.Authenticate(user, password, func(err error, teams []string) {
//		// invoked exactly once
//	})
package auth
