package trigger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader is the HTTP header webhooks use to carry the HMAC
// signature of the request body.
const SignatureHeader = "X-Weft-Signature"

// ErrSignatureMismatch indicates a webhook payload failed HMAC
// verification against the binding's secret.
var ErrSignatureMismatch = errors.New("trigger: webhook signature mismatch")

// Sign computes the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook body against its claimed signature.
// The signature may carry a "sha256=" prefix (GitHub convention); the
// comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return ErrSignatureMismatch
	}

	want := Sign(secret, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
