package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
)

// SecretHeader carries the optional shared secret on /rpc and /ws.
const SecretHeader = "X-Drawerq-Secret"

// ClientHeader names an HTTP caller so its idempotent retries replay.
const ClientHeader = "X-Drawerq-Client"

// maxAuthAttempts is how many bad signatures a client may send before it
// is disconnected.
const maxAuthAttempts = 3

// AuthResult is the outcome of one auth.response.
type AuthResult struct {
	Success bool   `json:"authenticated"`
	Message string `json:"message,omitempty"`
	// Disconnect is set once the client ran out of attempts.
	Disconnect bool `json:"-"`
}

// AuthHandler checks the shared secret. An empty secret admits everyone.
// HTTP callers present the secret itself; WebSocket clients may instead
// answer an HMAC-SHA256 challenge so the secret never crosses the wire.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a secret is required.
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// Verify compares a presented secret in constant time.
func (a *AuthHandler) Verify(presented string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(presented)) == 1
}

// Presented reports whether r carries a secret in the header or the
// "secret" query parameter.
func (a *AuthHandler) Presented(r *http.Request) bool {
	return r.Header.Get(SecretHeader) != "" || r.URL.Query().Get("secret") != ""
}

// Authorize checks the request header. Browsers cannot set headers on a
// WebSocket handshake, so /ws also accepts a "secret" query parameter.
func (a *AuthHandler) Authorize(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	if presented := r.Header.Get(SecretHeader); presented != "" {
		return a.Verify(presented)
	}
	return a.Verify(r.URL.Query().Get("secret"))
}

// GenerateChallenge returns 32 random bytes, hex encoded.
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// Sign returns the hex HMAC-SHA256 of challenge under secret. Clients send
// it back in auth.response.
func Sign(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks signature against challenge in constant time.
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	expected := Sign(a.sharedSecret, challenge)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleAuthResponse checks a client's answer to its pending challenge.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return AuthResult{Message: "no challenge pending"}
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++
		if client.AuthAttempts >= maxAuthAttempts {
			return AuthResult{Message: "too many failed attempts", Disconnect: true}
		}
		return AuthResult{Message: "invalid signature"}
	}

	client.AuthAttempts = 0
	client.Challenge = ""
	return AuthResult{Success: true}
}
