package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

const DefaultReplayWindow = 5 * time.Minute

// Failure reasons surfaced in authentication errors.
const (
	ReasonInvalidToken     = "invalid token"
	ReasonInvalidSignature = "invalid signature"
	ReasonInvalidTimestamp = "invalid timestamp"
	ReasonStaleTimestamp   = "stale timestamp"
	ReasonReplayDetected   = "replay detected"
	ReasonModeDisabled     = "authentication mode not enabled"
)

// Credentials are the raw identity headers of a request.
type Credentials struct {
	ClientID  string
	Token     string
	Signature string
	Timestamp string
	Bearer    string
}

// Empty reports whether no credential was presented at all.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.Signature == "" && c.Timestamp == "" && c.Bearer == ""
}

// Options configures an Authenticator.
type Options struct {
	Modes        []domain.AuthMode
	SharedSecret string
	HMACSecret   string
	Tokens       *TokenManager
	ReplayWindow time.Duration
	Replay       *ReplayGuard
	Now          func() time.Time
}

// Authenticator verifies request identity by shared token, HMAC signature or bearer JWT.
type Authenticator struct {
	modes        map[domain.AuthMode]bool
	sharedSecret []byte
	hmacSecret   []byte
	tokens       *TokenManager
	window       time.Duration
	replay       *ReplayGuard
	now          func() time.Time
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(opts Options) *Authenticator {
	a := &Authenticator{
		modes:        make(map[domain.AuthMode]bool, len(opts.Modes)),
		sharedSecret: []byte(opts.SharedSecret),
		hmacSecret:   []byte(opts.HMACSecret),
		tokens:       opts.Tokens,
		window:       opts.ReplayWindow,
		replay:       opts.Replay,
		now:          opts.Now,
	}
	for _, mode := range opts.Modes {
		a.modes[mode] = true
	}
	if a.window <= 0 {
		a.window = DefaultReplayWindow
	}
	if a.replay == nil {
		a.replay = NewReplayGuard()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Replay exposes the signature set for maintenance sweeps.
func (a *Authenticator) Replay() *ReplayGuard {
	return a.replay
}

// Authenticate resolves the caller identity. Signed requests take precedence
// over shared tokens, which take precedence over bearer tokens.
func (a *Authenticator) Authenticate(creds Credentials, body []byte) (domain.Identity, error) {
	switch {
	case creds.Signature != "" || creds.Timestamp != "":
		return a.verifySignature(creds, body)
	case creds.Token != "":
		return a.verifyToken(creds)
	case creds.Bearer != "":
		return a.verifyBearer(creds)
	default:
		return domain.Identity{}, apperrors.NewAuthRequired()
	}
}

func (a *Authenticator) verifyToken(creds Credentials) (domain.Identity, error) {
	if !a.modes[domain.AuthModeToken] || len(a.sharedSecret) == 0 {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonModeDisabled)
	}
	if subtle.ConstantTimeCompare([]byte(creds.Token), a.sharedSecret) != 1 {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidToken)
	}
	return credentialIdentity(domain.AuthModeToken, creds.ClientID), nil
}

func (a *Authenticator) verifySignature(creds Credentials, body []byte) (domain.Identity, error) {
	if !a.modes[domain.AuthModeHMAC] || len(a.hmacSecret) == 0 {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonModeDisabled)
	}
	if creds.Signature == "" || creds.Timestamp == "" {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidSignature)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(creds.Timestamp), 10, 64)
	if err != nil {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidTimestamp)
	}
	now := a.now()
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.window {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonStaleTimestamp)
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(creds.Signature), "sha256="))
	if err != nil {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidSignature)
	}
	expected := Sign(a.hmacSecret, creds.Timestamp, body)
	if !hmac.Equal(provided, expected) {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidSignature)
	}

	// The digest must outlive every instant at which its timestamp still
	// passes the skew check, including future-dated timestamps. The check
	// is inclusive, hence the extra second.
	expiresAt := now.Add(a.window)
	if end := time.Unix(ts, 0).Add(a.window + time.Second); end.After(expiresAt) {
		expiresAt = end
	}
	if !a.replay.Remember(hex.EncodeToString(provided), now, expiresAt) {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonReplayDetected)
	}
	return credentialIdentity(domain.AuthModeHMAC, creds.ClientID), nil
}

func (a *Authenticator) verifyBearer(creds Credentials) (domain.Identity, error) {
	if !a.modes[domain.AuthModeJWT] || a.tokens == nil {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonModeDisabled)
	}
	claims, err := a.tokens.ParseToken(creds.Bearer)
	if err != nil {
		return domain.Identity{}, apperrors.NewAuthenticationError(ReasonInvalidToken)
	}
	return domain.Identity{Subject: claims.Subject, Mode: domain.AuthModeJWT}, nil
}

// Sign computes HMAC-SHA256(secret, timestamp || body).
func Sign(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignHex is Sign rendered the way clients send it in the signature header.
func SignHex(secret []byte, timestamp string, body []byte) string {
	return hex.EncodeToString(Sign(secret, timestamp, body))
}

// credentialIdentity names the holder of a shared credential. The subject is
// derived from the credential alone; the client id header is not covered by
// the secret, so it is carried only as a label.
func credentialIdentity(mode domain.AuthMode, clientID string) domain.Identity {
	return domain.Identity{
		Subject: string(mode) + "-client",
		Mode:    mode,
		Label:   strings.TrimSpace(clientID),
	}
}
