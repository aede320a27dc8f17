package authflow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// finalizeGrant fills ExpiresAt on a grant. expires_in wins when the
// backend sent it; otherwise the access token's exp claim is read without
// signature verification (the client has no verification key and only
// needs the expiry for scheduling). A token with neither yields a zero
// ExpiresAt.
func finalizeGrant(grant *TokenGrant, now time.Time) *TokenGrant {
	if grant == nil {
		return nil
	}
	if grant.ExpiresIn > 0 {
		grant.ExpiresAt = now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		return grant
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(grant.AccessToken, claims); err != nil {
		return grant
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return grant
	}
	grant.ExpiresAt = exp.Time
	return grant
}
