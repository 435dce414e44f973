// Package allow parses the `allow` option of the Bitbucket authentication
// adaptor and evaluates resolved team privileges against it.
//
// # Grammar
//
// The option is a comma separated list of team specifications:
//
//	allow: "platform, backend(owner|collaborator), qa(member)"
//
// A bare team name accepts any role held in that team. A parenthesized,
// pipe separated list restricts access to the named roles.
//
// # Usage
//
//	table, err := allow.Parse(cfg.Allow)
//	if err != nil {
//		return err // invalid configuration, fail at startup
//	}
//
//	if table.Allows("backend", "owner") {
//		// grant
//	}
package allow
