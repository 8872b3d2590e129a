package gateway

import (
	"crypto/subtle"
	"os"

	"github.com/coursewright/coursewright/internal/config"
)

// ResolvedAuth holds the resolved auth configuration for the API server.
type ResolvedAuth struct {
	Mode  string
	Token string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value, then env variable, then empty.
func ResolveAuth(cfg config.ServerAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("COURSEWRIGHT_AUTH_TOKEN")
	}
	if auth.Mode == "" {
		auth.Mode = "token"
	}
	return auth
}

// Authorize checks a bearer token against the resolved server auth.
func (a ResolvedAuth) Authorize(token string) bool {
	if a.Mode == "none" {
		return true
	}
	if a.Token == "" || token == "" {
		return false
	}
	return safeEqual(token, a.Token)
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
