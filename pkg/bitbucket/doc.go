// Package bitbucket resolves a user's workspace (team) memberships from the
// Bitbucket Cloud 2.0 API.
//
// Membership is queried once per role in Roles, each query following the
// API's "next" pagination links until exhausted. The role queries run
// concurrently and are merged in the fixed order of Roles once all of them
// completed, so a team reported under several roles ends up with the last
// one (owner beats collaborator beats member).
//
//	client := bitbucket.NewClient(bitbucket.Options{Timeout: 5 * time.Second})
//	privileges, err := client.Privileges(ctx, bitbucket.Credentials{
//		Username: "alice@example.com",
//		Password: appPassword,
//	})
//	if err != nil {
//		var upstreamErr *bitbucket.UpstreamError
//		errors.As(err, &upstreamErr)
//	}
//	role, _ := privileges.Role("platform")
package bitbucket
