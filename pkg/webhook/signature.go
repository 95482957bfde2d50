// Package webhook implements the inbound webhook verification and routing
// layer: provider HMAC signature schemes, payload parsing with source
// detection, and per-source handler dispatch.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"
)

// Algorithm selects the HMAC hash for signature verification.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// slackReplayWindow is the maximum accepted age of a Slack request
// timestamp, per Slack's signing guidance.
const slackReplayWindow = 300 * time.Second

// now is replaceable for replay-window tests.
var now = time.Now

// SignatureOptions configures generic HMAC verification.
type SignatureOptions struct {
	Algorithm Algorithm
	// Prefix is stripped from the presented signature before comparison
	// (e.g. "sha256=").
	Prefix string
	Secret string
}

// VerifyResult reports a verification outcome. Verification never panics
// across the package boundary; failures are carried in Error.
type VerifyResult struct {
	Valid bool
	Error string
}

func invalid(format string, args ...interface{}) VerifyResult {
	return VerifyResult{Valid: false, Error: fmt.Sprintf(format, args...)}
}

// VerifySignature checks an HMAC hex signature over the raw payload bytes.
// The comparison is constant time over equal-length strings and fails
// immediately on a length mismatch, which leaks length but not content.
func VerifySignature(payload []byte, signature string, opts SignatureOptions) VerifyResult {
	if signature == "" {
		return invalid("signature is missing")
	}
	if opts.Secret == "" {
		return invalid("signature secret is not configured")
	}

	var newHash func() hash.Hash
	switch opts.Algorithm {
	case AlgorithmSHA1:
		newHash = sha1.New
	case AlgorithmSHA256, "":
		newHash = sha256.New
	case AlgorithmSHA512:
		newHash = sha512.New
	default:
		return invalid("unsupported algorithm %q", opts.Algorithm)
	}

	presented := strings.TrimPrefix(signature, opts.Prefix)

	mac := hmac.New(newHash, []byte(opts.Secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(presented), []byte(expected)) {
		return invalid("signature mismatch")
	}
	return VerifyResult{Valid: true}
}

// SignPayload computes the hex HMAC for a payload. Intended for tests and
// outbound webhook senders.
func SignPayload(payload []byte, opts SignatureOptions) string {
	var newHash func() hash.Hash
	switch opts.Algorithm {
	case AlgorithmSHA1:
		newHash = sha1.New
	case AlgorithmSHA512:
		newHash = sha512.New
	default:
		newHash = sha256.New
	}

	mac := hmac.New(newHash, []byte(opts.Secret))
	mac.Write(payload)
	return opts.Prefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyGitHubSignature checks the x-hub-signature-256 scheme:
// HMAC-SHA256 over the raw JSON body, prefixed "sha256=".
func VerifyGitHubSignature(payload []byte, signature, secret string) VerifyResult {
	return VerifySignature(payload, signature, SignatureOptions{
		Algorithm: AlgorithmSHA256,
		Prefix:    "sha256=",
		Secret:    secret,
	})
}

// VerifyJiraSignature checks Jira's webhook scheme. The header convention
// differs from GitHub but the verification math is identical.
func VerifyJiraSignature(payload []byte, signature, secret string) VerifyResult {
	return VerifySignature(payload, signature, SignatureOptions{
		Algorithm: AlgorithmSHA256,
		Prefix:    "sha256=",
		Secret:    secret,
	})
}

// VerifySlackSignature checks Slack's v0 scheme: HMAC-SHA256 over
// "v0:{timestamp}:{body}" prefixed "v0=". Requests older (or newer) than
// the replay window are rejected before any HMAC is computed.
func VerifySlackSignature(payload []byte, timestamp, signature, secret string) VerifyResult {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return invalid("invalid slack request timestamp")
	}

	age := now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > slackReplayWindow {
		return invalid("slack request timestamp outside replay window")
	}

	base := fmt.Sprintf("v0:%s:%s", strings.TrimSpace(timestamp), payload)
	return VerifySignature([]byte(base), signature, SignatureOptions{
		Algorithm: AlgorithmSHA256,
		Prefix:    "v0=",
		Secret:    secret,
	})
}
