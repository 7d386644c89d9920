package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
)

// Codec signs and verifies payloads with a shared secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec for the given shared secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign computes the HMAC-SHA256 of payload and returns it as lowercase hex.
func (c *Codec) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the HMAC of payload and compares it to signatureHex in
// constant time. A malformed hex signature is reported as a mismatch, never
// as an error.
func (c *Codec) Verify(signatureHex string, payload []byte) bool {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hmac.Equal(signature, mac.Sum(nil))
}

// EncodePayload serializes fields as a URL query string and base64-encodes
// the result.
func EncodePayload(fields url.Values) string {
	return base64.StdEncoding.EncodeToString([]byte(fields.Encode()))
}

// DecodePayload reverses EncodePayload.
func DecodePayload(encoded string) (url.Values, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	fields, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed payload query: %w", err)
	}

	return fields, nil
}
