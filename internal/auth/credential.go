package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// Claims the server puts into the session token it issues at login.
const (
	userIdClaim   = "user-id"
	expClaim      = "exp"
	subjectClaim  = "sub"
	usernameClaim = "username"
)

var (
	ErrNoCredential = errors.New("no session token configured")
	ErrExpired      = errors.New("session token expired")
)

// Credential is the session token presented when connecting. The token is
// opaque to the client; when it happens to be a JWT its claims are read
// without verification so an expired token can be reported before dialing.
type Credential struct {
	Token     string
	UserId    types.UserID
	Username  string
	ExpiresAt time.Time
}

// Load returns the credential from token, or from the contents of tokenFile
// when token is empty.
func Load(token, tokenFile string) (*Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" && tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}

	if token == "" {
		return nil, ErrNoCredential
	}

	return Parse(token), nil
}

// Parse inspects token. Tokens that are not JWTs yield a credential with
// only Token set.
func Parse(token string) *Credential {
	c := &Credential{Token: token}

	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return c
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return c
	}

	c.UserId = userIdFromClaim(claims[userIdClaim])
	if exp, ok := claims[expClaim].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if name, ok := claims[usernameClaim].(string); ok {
		c.Username = name
	} else if sub, ok := claims[subjectClaim].(string); ok {
		c.Username = sub
	}

	return c
}

func userIdFromClaim(v any) types.UserID {
	switch id := v.(type) {
	case float64:
		return types.UserID(strconv.FormatInt(int64(id), 10))
	case string:
		return types.UserID(id)
	}
	return ""
}

// Expired reports whether the token carries an expiry that lies before now.
// Tokens without one never expire client-side.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Check returns ErrExpired for a token known to be expired at now.
func (c *Credential) Check(now time.Time) error {
	if c.Expired(now) {
		return fmt.Errorf("%w at %s", ErrExpired, c.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
