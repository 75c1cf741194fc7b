package auth

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const (
	sharedSecret = "shared-secret"
	hmacSecret   = "hmac-secret"
	jwtSecret    = "jwt-secret"
)

func newTestAuthenticator(clock *fakeClock) *Authenticator {
	tokens := NewTokenManager(jwtSecret)
	tokens.now = clock.Now
	return NewAuthenticator(Options{
		Modes:        []domain.AuthMode{domain.AuthModeToken, domain.AuthModeHMAC, domain.AuthModeJWT},
		SharedSecret: sharedSecret,
		HMACSecret:   hmacSecret,
		Tokens:       tokens,
		ReplayWindow: 5 * time.Minute,
		Now:          clock.Now,
	})
}

func signed(clock *fakeClock, body []byte) Credentials {
	ts := strconv.FormatInt(clock.Now().Unix(), 10)
	return Credentials{Timestamp: ts, Signature: "sha256=" + SignHex([]byte(hmacSecret), ts, body)}
}

func assertAuthError(t *testing.T, err error, kind apperrors.ErrorKind, message string) {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, kind, de.Kind)
	if message != "" {
		assert.Equal(t, message, de.Message)
	}
}

func TestAuthenticateSharedSecret(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)

	id, err := a.Authenticate(Credentials{Token: sharedSecret, ClientID: " voice-agent "}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Subject: "token-client", Mode: domain.AuthModeToken, Label: "voice-agent"}, id)

	id, err = a.Authenticate(Credentials{Token: sharedSecret}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Subject: "token-client", Mode: domain.AuthModeToken}, id)

	_, err = a.Authenticate(Credentials{Token: "nope"}, nil)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonInvalidToken)
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	a := newTestAuthenticator(&fakeClock{now: time.Unix(1_700_000_000, 0)})

	_, err := a.Authenticate(Credentials{ClientID: "someone"}, []byte("{}"))
	assertAuthError(t, err, apperrors.KindAuthRequired, "auth required")
}

func TestAuthenticateHMAC(t *testing.T) {
	body := []byte(`{"note":"Customer reports no connection"}`)

	testCases := []struct {
		name    string
		creds   func(clock *fakeClock) Credentials
		message string
	}{
		{
			name:  "valid_signature",
			creds: func(clock *fakeClock) Credentials { return signed(clock, body) },
		},
		{
			name: "signature_without_prefix",
			creds: func(clock *fakeClock) Credentials {
				c := signed(clock, body)
				c.Signature = c.Signature[len("sha256="):]
				return c
			},
		},
		{
			name: "tampered_body",
			creds: func(clock *fakeClock) Credentials {
				return signed(clock, []byte(`{"note":"something else entirely"}`))
			},
			message: ReasonInvalidSignature,
		},
		{
			name: "stale_timestamp",
			creds: func(clock *fakeClock) Credentials {
				ts := strconv.FormatInt(clock.Now().Add(-6*time.Minute).Unix(), 10)
				return Credentials{Timestamp: ts, Signature: SignHex([]byte(hmacSecret), ts, body)}
			},
			message: ReasonStaleTimestamp,
		},
		{
			name: "future_timestamp_beyond_window",
			creds: func(clock *fakeClock) Credentials {
				ts := strconv.FormatInt(clock.Now().Add(6*time.Minute).Unix(), 10)
				return Credentials{Timestamp: ts, Signature: SignHex([]byte(hmacSecret), ts, body)}
			},
			message: ReasonStaleTimestamp,
		},
		{
			name: "non_numeric_timestamp",
			creds: func(clock *fakeClock) Credentials {
				return Credentials{Timestamp: "yesterday", Signature: "abcd"}
			},
			message: ReasonInvalidTimestamp,
		},
		{
			name: "signature_not_hex",
			creds: func(clock *fakeClock) Credentials {
				c := signed(clock, body)
				c.Signature = "zz-not-hex"
				return c
			},
			message: ReasonInvalidSignature,
		},
		{
			name: "missing_timestamp",
			creds: func(clock *fakeClock) Credentials {
				c := signed(clock, body)
				c.Timestamp = ""
				return c
			},
			message: ReasonInvalidSignature,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			a := newTestAuthenticator(clock)

			id, err := a.Authenticate(tc.creds(clock), body)
			if tc.message == "" {
				require.NoError(t, err)
				assert.Equal(t, domain.AuthModeHMAC, id.Mode)
				return
			}
			assertAuthError(t, err, apperrors.KindAuthentication, tc.message)
		})
	}
}

func TestAuthenticateHMACReplay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)
	body := []byte(`{"note":"Customer reports no connection"}`)
	creds := signed(clock, body)

	_, err := a.Authenticate(creds, body)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = a.Authenticate(creds, body)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonReplayDetected)
	assert.Equal(t, 1, a.Replay().Len())

	// Once the window passes the digest is swept and the timestamp itself is stale.
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, a.Replay().Sweep(clock.Now()))
	assert.Equal(t, 0, a.Replay().Len())

	_, err = a.Authenticate(creds, body)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonStaleTimestamp)
}

func TestAuthenticateHMACFutureDatedReplay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)
	body := []byte(`{"note":"Customer reports no connection"}`)
	ts := strconv.FormatInt(clock.Now().Add(5*time.Minute).Unix(), 10)
	creds := Credentials{Timestamp: ts, Signature: SignHex([]byte(hmacSecret), ts, body)}

	_, err := a.Authenticate(creds, body)
	require.NoError(t, err)

	// The timestamp stays inside the skew window until now+10m, so the
	// digest has to survive a sweep well past now+5m.
	clock.Advance(5*time.Minute + time.Second)
	assert.Equal(t, 0, a.Replay().Sweep(clock.Now()))
	_, err = a.Authenticate(creds, body)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonReplayDetected)

	// Exactly at the edge of the skew window.
	clock.Advance(4*time.Minute + 59*time.Second)
	assert.Equal(t, 0, a.Replay().Sweep(clock.Now()))
	_, err = a.Authenticate(creds, body)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonReplayDetected)

	clock.Advance(time.Second)
	_, err = a.Authenticate(creds, body)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonStaleTimestamp)
}

func TestAuthenticateHMACIdentityIgnoresClientID(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)

	first := signed(clock, []byte(`{"n":1}`))
	first.ClientID = "agent-a"
	idA, err := a.Authenticate(first, []byte(`{"n":1}`))
	require.NoError(t, err)

	second := signed(clock, []byte(`{"n":2}`))
	second.ClientID = "agent-b"
	idB, err := a.Authenticate(second, []byte(`{"n":2}`))
	require.NoError(t, err)

	assert.Equal(t, idA.Subject, idB.Subject)
	assert.Equal(t, "hmac-client", idA.Subject)
	assert.Equal(t, "agent-a", idA.Label)
	assert.Equal(t, "agent-b", idB.Label)
}

func TestAuthenticateHMACConcurrentReplayOnlyOneWins(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)
	body := []byte(`{"note":"Customer reports no connection"}`)
	creds := signed(clock, body)

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := a.Authenticate(creds, body); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestAuthenticateJWT(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	a := newTestAuthenticator(clock)

	token := issueToken(t, jwtSecret, jwt.SigningMethodHS256, "chat-bot", clock.Now(), time.Hour)

	id, err := a.Authenticate(Credentials{Bearer: token, ClientID: "spoofed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Subject: "chat-bot", Mode: domain.AuthModeJWT}, id)

	forged := issueToken(t, "other-secret", jwt.SigningMethodHS256, "chat-bot", clock.Now(), time.Hour)
	_, err = a.Authenticate(Credentials{Bearer: forged}, nil)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonInvalidToken)

	clock.Advance(2 * time.Hour)
	_, err = a.Authenticate(Credentials{Bearer: token}, nil)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonInvalidToken)
}

func TestAuthenticateDisabledMode(t *testing.T) {
	a := NewAuthenticator(Options{
		Modes:        []domain.AuthMode{domain.AuthModeHMAC},
		SharedSecret: sharedSecret,
		HMACSecret:   hmacSecret,
	})

	_, err := a.Authenticate(Credentials{Token: sharedSecret}, nil)
	assertAuthError(t, err, apperrors.KindAuthentication, ReasonModeDisabled)
}
