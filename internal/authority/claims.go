package authority

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
)

// accessTokenClaims are the parts of an access token worth logging. The
// token is never verified here: the authority that issued it is the only
// party that relies on its contents.
type accessTokenClaims struct {
	jwt.RegisteredClaims
	UPN        string `json:"upn,omitempty"`
	UniqueName string `json:"unique_name,omitempty"`
	TenantID   string `json:"tid,omitempty"`
}

// inspectAccessToken reads the claims of a JWT access token. Opaque tokens
// yield empty claims.
func inspectAccessToken(raw string) accessTokenClaims {
	var claims accessTokenClaims

	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil {
		log.Debug().Err(err).Msg("access token is not a readable JWT")
		return accessTokenClaims{}
	}

	return claims
}

// Principal returns the best available name for the signed-in user.
func (c accessTokenClaims) Principal() string {
	switch {
	case c.UPN != "":
		return c.UPN
	case c.UniqueName != "":
		return c.UniqueName
	default:
		return c.Subject
	}
}

// Expiry returns the token expiry, or the zero time when absent.
func (c accessTokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
