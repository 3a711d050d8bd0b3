// Package jwt issues and validates the RS256 access tokens handed out by the
// identity service.
//
// Signing and parsing are done with github.com/golang-jwt/jwt/v5; this package
// owns key loading, the claim set and the mapping of parse failures onto its
// own sentinel errors.
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "./keys/private.pem",
//	    Issuer:         "sipmate",
//	    ExpirationMins: 15,
//	})
//
//	token, err := svc.Sign(jwt.Claims{UserID: "account:abc", Email: "wine_lover@sipmate.local"})
//	claims, err := svc.Validate(token)
//	if errors.Is(err, jwt.ErrTokenExpired) {
//	    // ask the client to refresh
//	}
package jwt
