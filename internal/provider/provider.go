// Package provider normalizes inbound payment-provider webhooks into a
// single canonical event. The set of providers is closed: each one
// implements matching (structural detection), signature verification
// and payload parsing, and detection walks an explicit, ordered list.
package provider

import (
	"errors"
	"net/http"
)

// Errors returned by detection and verification.
var (
	// ErrUnknownProvider means no provider's structural markers matched.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidSignature means the header signature did not verify
	// against the raw payload.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrBadPayload means the body could not be parsed as the detected
	// provider's payload shape.
	ErrBadPayload = errors.New("malformed payload")
)

// Event is the canonical form of a provider notification. Reference is
// always the merchant reference generated by us, never the provider's
// own transaction id.
type Event struct {
	Provider      string
	Type          string
	Success       bool
	Reference     string
	TransactionID string
	Amount        float64
	Currency      string
	Raw           []byte
}

// Provider is one payment provider's webhook dialect.
type Provider interface {
	// Name identifies the provider in logs, metrics and audit records.
	Name() string
	// Match reports whether the request looks like this provider's.
	// Header fingerprints take precedence over payload shape; Match must
	// not mutate the request.
	Match(header http.Header, body []byte) bool
	// Verify checks the header-supplied signature against the raw body
	// using a constant-time comparison.
	Verify(header http.Header, body []byte) error
	// Parse decodes the raw body into a canonical Event.
	Parse(body []byte) (*Event, error)
}

// Detect returns the first provider whose structural markers match.
// Callers pass providers in priority order; header-based detection wins
// inside each provider's Match.
func Detect(providers []Provider, header http.Header, body []byte) (Provider, error) {
	for _, p := range providers {
		if p.Match(header, body) {
			return p, nil
		}
	}
	return nil, ErrUnknownProvider
}
