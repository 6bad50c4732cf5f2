package claims

import (
	"strings"
	"time"

	"github.com/campusboard/sessionkit/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// MalformedTokenErr indicates a token string that is not structurally a JWT
// (wrong segment count, bad base64url, or an unparsable payload).
var MalformedTokenErr = errors.New("malformed token")

// Claims is the decoded payload of a bearer token. Decoding is structural
// only; signature verification is the identity provider's and the resource
// server's job.
type Claims struct {
	Subject           string
	Issuer            string
	Audience          string
	IssuedAt          int64
	ExpiresAt         int64
	SessionID         string
	PreferredUsername string
	Roles             []string
}

// Parse splits rawToken into its three segments, base64url-decodes the
// payload and extracts the claims this subsystem cares about. Missing
// optional fields never fail: roles default to an empty set and the
// username to the empty string.
func Parse(rawToken string) (*Claims, error) {
	if strings.Count(rawToken, ".") != 2 {
		return nil, errors.Wrap(MalformedTokenErr, "[claims.Parse] token must have three segments")
	}

	unverifiedToken, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(MalformedTokenErr, err.Error())
	}

	mapClaims, ok := unverifiedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(MalformedTokenErr, "[claims.Parse] error extracting claims")
	}

	sub, _ := mapClaims["sub"].(string)
	iss, _ := mapClaims["iss"].(string)
	sid, _ := mapClaims["sid"].(string)
	username, _ := mapClaims["preferred_username"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return &Claims{
		Subject:           sub,
		Issuer:            iss,
		Audience:          audienceClaim(mapClaims),
		IssuedAt:          int64(iat),
		ExpiresAt:         int64(exp),
		SessionID:         sid,
		PreferredUsername: username,
		Roles:             roleClaims(mapClaims),
	}, nil
}

// HasRole reports whether the role set contains role. Total: a nil or
// empty role set yields false, never an error.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the role set contains at least one of roles.
func (c *Claims) HasAnyRole(roles []string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// ExpiresIn returns the remaining validity relative to now. Negative for
// an already-expired token.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(c.ExpiresAt, 0).Sub(now)
}

// roleClaims pulls the realm role list out of the payload. Providers nest
// it under realm_access.roles; a flat roles claim is accepted as well.
// Absent or malformed role claims degrade to an empty set.
func roleClaims(mapClaims jwt.MapClaims) []string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]any); ok {
		if roles, ok := realmAccess["roles"].([]any); ok {
			return utils.ToStringSlice(roles)
		}
	}
	if roles, ok := mapClaims["roles"].([]any); ok {
		return utils.ToStringSlice(roles)
	}
	return []string{}
}

// audienceClaim handles both string and array forms of the aud claim.
func audienceClaim(mapClaims jwt.MapClaims) string {
	switch aud := mapClaims["aud"].(type) {
	case string:
		return aud
	case []any:
		audiences := utils.ToStringSlice(aud)
		if len(audiences) > 0 {
			return audiences[0]
		}
	}
	return ""
}
