package ipaymu

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"SignalRelay/internal/domain/models"
)

// Verifier authenticates payment callbacks with a shared secret. A
// callback passes when it carries the secret as a token or an HMAC-SHA256
// signature of its raw body keyed by the secret. An empty secret rejects
// everything.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks token (header or query) and signature (hex) against body.
func (v *Verifier) Verify(token, signature string, body []byte) error {
	if len(v.secret) == 0 {
		return models.ErrAuthentication
	}
	if token != "" && subtle.ConstantTimeCompare([]byte(token), v.secret) == 1 {
		return nil
	}
	if signature != "" {
		want := v.Signature(body)
		if hmac.Equal([]byte(strings.ToLower(signature)), []byte(want)) {
			return nil
		}
	}
	return models.ErrAuthentication
}

// Signature is the hex HMAC-SHA256 of body under the callback secret.
func (v *Verifier) Signature(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// IsPaid reports whether a callback status settles the invoice.
func IsPaid(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusPaid)
}
