// Package audit signs outbound relay requests so a receiver can verify
// they came from this service and were not replayed.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Header names set on signed requests.
const (
	SignatureHeader = "X-Relay-Signature"
	TimestampHeader = "X-Relay-Timestamp"
	signaturePrefix = "sha256="
)

type RequestSigner struct {
	secretKey []byte
	now       func() time.Time
}

// NewRequestSigner returns nil when secretKey is empty so callers can treat
// a nil signer as "signing disabled".
func NewRequestSigner(secretKey string) *RequestSigner {
	if secretKey == "" {
		return nil
	}
	return &RequestSigner{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// Sign returns the header value for method, unix timestamp and body.
func (s *RequestSigner) Sign(method string, timestamp int64, body []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte{'\n'})
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Headers signs body at the current time and returns the two header values.
func (s *RequestSigner) Headers(method string, body []byte) (signature, timestamp string) {
	ts := s.now().Unix()
	return s.Sign(method, ts, body), strconv.FormatInt(ts, 10)
}

// Verify checks signature and rejects timestamps older or newer than maxSkew.
func (s *RequestSigner) Verify(method, timestamp string, body []byte, signature string, maxSkew time.Duration) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := s.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if maxSkew > 0 && skew > maxSkew {
		return false
	}
	expected := s.Sign(method, ts, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
