// Package hellosign verifies callback events from the legacy Dropbox Sign
// (HelloSign) integration.
package hellosign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const Provider = "hellosign"

type Verifier struct {
	apiKey string
}

func NewVerifier(apiKey string) *Verifier {
	return &Verifier{apiKey: apiKey}
}

// Verify checks event_hash, the hex HMAC-SHA256 keyed by the API key over
// event_time followed by event_type.
func (v *Verifier) Verify(eventTime, eventType, eventHash string) bool {
	if v == nil || v.apiKey == "" || eventTime == "" || eventType == "" || eventHash == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(eventHash))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(v.apiKey))
	_, _ = mac.Write([]byte(eventTime + eventType))
	return hmac.Equal(mac.Sum(nil), provided)
}

func Sign(apiKey, eventTime, eventType string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	_, _ = mac.Write([]byte(eventTime + eventType))
	return hex.EncodeToString(mac.Sum(nil))
}
