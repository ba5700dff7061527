/*
Package authsdk is the Go client for the passport identity service, and holds
the request and response types the service puts on the wire.

# SDKClient vs Session

SDKClient calls the public endpoints. Every call that signs a user in returns
a Session, which carries the access token and shares the client's cookie jar,
where the service keeps the refresh token:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.Login(ctx, "ann@example.com", "P@ssw0rd1")
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "UNAUTHORIZED" {
			// wrong email or password
		}
	}

	profile, err := session.GetProfile(ctx)

Session.Refresh exchanges the refresh cookie for a new pair. The old refresh
token stops working as soon as the exchange succeeds.
*/
package authsdk
