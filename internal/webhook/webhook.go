// Package webhook implements spec.md §6's two webhook signature providers
// as a Verifier interface: the HTTP listener that would receive these
// webhooks is an out-of-scope external collaborator (spec.md §1), but the
// signature verification algorithms themselves are part of the core's
// security surface and are fully implemented and tested here.
package webhook

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Verifier checks an inbound webhook's signature against its raw body.
type Verifier interface {
	Verify(header string, body []byte, now time.Time) error
}

var (
	// ErrBadSignature covers both malformed headers and genuine mismatches.
	ErrBadSignature = errors.New("webhook: bad signature")
	// ErrClockSkew covers ECDSA payloads whose embedded timestamp falls
	// outside the allowed window.
	ErrClockSkew = errors.New("webhook: timestamp outside allowed window")
)

// HMACVerifier implements the HMAC-SHA256 provider: header is
// "sha256=<hexlower>", compared via constant-time equality against
// HMAC_SHA256(sharedSecret, rawBody).
type HMACVerifier struct {
	SharedSecret []byte
}

func (v HMACVerifier) Verify(header string, body []byte, _ time.Time) error {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return fmt.Errorf("%w: missing sha256= prefix", ErrBadSignature)
	}
	got, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return fmt.Errorf("%w: non-hex signature", ErrBadSignature)
	}
	mac := hmac.New(sha256.New, v.SharedSecret)
	mac.Write(body)
	want := mac.Sum(nil)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrBadSignature
	}
	return nil
}

// clockSkewForward and clockSkewBackward bound how far a signed timestamp
// may drift from the verifier's clock before the ECDSA provider rejects it.
const (
	clockSkewBackward = 300 * time.Second
	clockSkewForward  = 60 * time.Second
)

// ECDSAVerifier implements the ECDSA P-256 provider: the signed payload is
// `timestamp || raw_body`, verified against an SPKI-encoded public key.
// header carries "<unix-timestamp>.<hex-der-signature>".
type ECDSAVerifier struct {
	PublicKeySPKI []byte
}

func (v ECDSAVerifier) Verify(header string, body []byte, now time.Time) error {
	ts, sigHex, err := splitECDSAHeader(header)
	if err != nil {
		return err
	}
	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > clockSkewBackward || signedAt.Sub(now) > clockSkewForward {
		return ErrClockSkew
	}

	pub, err := x509.ParsePKIXPublicKey(v.PublicKeySPKI)
	if err != nil {
		return fmt.Errorf("%w: invalid public key: %v", ErrBadSignature, err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: public key is not ECDSA", ErrBadSignature)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("%w: non-hex signature", ErrBadSignature)
	}

	payload := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(payload[:8], uint64(ts))
	copy(payload[8:], body)
	digest := sha256.Sum256(payload)

	if !ecdsa.VerifyASN1(ecKey, digest[:], sig) {
		return ErrBadSignature
	}
	return nil
}

func splitECDSAHeader(header string) (ts int64, sigHex string, err error) {
	for i := 0; i < len(header); i++ {
		if header[i] == '.' {
			tsPart, sigPart := header[:i], header[i+1:]
			var parsed int64
			for _, c := range tsPart {
				if c < '0' || c > '9' {
					return 0, "", fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
				}
				parsed = parsed*10 + int64(c-'0')
			}
			return parsed, sigPart, nil
		}
	}
	return 0, "", fmt.Errorf("%w: missing timestamp separator", ErrBadSignature)
}

// SignECDSA is the test/fixture-side counterpart to ECDSAVerifier: it signs
// timestamp||body with priv and renders the header format ECDSAVerifier
// expects. Production signing lives with the out-of-scope sender; this
// exists so tests can construct valid fixtures without hand-rolling ASN.1.
func SignECDSA(priv *ecdsa.PrivateKey, body []byte, ts int64) (string, error) {
	payload := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(payload[:8], uint64(ts))
	copy(payload[8:], body)
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%s", ts, hex.EncodeToString(sig)), nil
}
