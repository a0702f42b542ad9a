package api

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// usernameClaims are checked in order; Microsoft v2 tokens carry
// preferred_username, v1 tokens carry upn or unique_name.
var usernameClaims = []string{"preferred_username", "upn", "unique_name", "email"}

// AccountFromToken reads the account and expiry from an access token's
// claims. The signature is not verified: the token was just handed to us by
// our own backend and is only used for display.
func AccountFromToken(raw string) (*Account, time.Time, error) {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	acct := &Account{
		Name: stringClaim(tok, "name"),
	}
	for _, claim := range usernameClaims {
		if v := stringClaim(tok, claim); v != "" {
			acct.Username = v
			break
		}
	}
	if acct.Name == "" {
		acct.Name = acct.Username
	}
	if acct.Name == "" && acct.Username == "" {
		acct = nil
	}

	return acct, tok.Expiration(), nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
