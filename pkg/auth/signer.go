package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/tendant/qr-handoff/pkg/domain"
)

// Signer produces and verifies compact signed tokens: a base64url-encoded
// payload and an HMAC-SHA256 tag joined by a dot. Payloads are opaque to
// clients; the tag is keyed by a server-held secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer keyed by the given secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign serializes payload and appends its HMAC tag.
func (s *Signer) Sign(payload []byte) string {
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.tag(body)
}

// Verify recomputes the tag over the received body and returns the decoded
// payload. A missing separator, a bad tag and an undecodable body all return
// domain.ErrInvalidToken, so callers cannot distinguish the failure modes.
func (s *Signer) Verify(token string) ([]byte, error) {
	body, tag, ok := strings.Cut(token, ".")
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	// hmac.Equal compares in constant time.
	if !hmac.Equal([]byte(tag), []byte(s.tag(body))) {
		return nil, domain.ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return payload, nil
}

func (s *Signer) tag(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
