package domain

// AuthMode identifies how a caller proved its identity.
type AuthMode string

const (
	AuthModeToken AuthMode = "token"
	AuthModeHMAC  AuthMode = "hmac"
	AuthModeJWT   AuthMode = "jwt"
)

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Mode    AuthMode
	// Label is a caller-asserted name, unverified; never use it as a key.
	Label string
}
