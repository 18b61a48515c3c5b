package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

// PagaSignatureHeader carries the HMAC-SHA256 of the raw body.
const PagaSignatureHeader = "x-paga-signature"

// Paga handles Paga webhook deliveries. Paga signs the raw body with
// HMAC-SHA256 using the merchant's shared key and sends the hex digest
// in the x-paga-signature header.
type Paga struct {
	HMACKey string
}

type pagaPayload struct {
	EventType string `json:"eventType"`
	Data      struct {
		MerchantReference string  `json:"merchantReference"`
		TransactionID     string  `json:"transactionId"`
		Amount            float64 `json:"amount"`
		Currency          string  `json:"currency"`
	} `json:"data"`
}

// Name implements Provider.
func (p *Paga) Name() string { return "paga" }

// Match implements Provider.
func (p *Paga) Match(header http.Header, body []byte) bool {
	if header.Get(PagaSignatureHeader) != "" {
		return true
	}
	var probe struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.EventType != ""
}

// Verify implements Provider.
func (p *Paga) Verify(header http.Header, body []byte) error {
	got := header.Get(PagaSignatureHeader)
	if got == "" {
		return fmt.Errorf("missing %s header: %w", PagaSignatureHeader, ErrInvalidSignature)
	}
	mac := hmac.New(sha256.New, []byte(p.HMACKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(got)) {
		return ErrInvalidSignature
	}
	return nil
}

// Parse implements Provider.
func (p *Paga) Parse(body []byte) (*Event, error) {
	var payload pagaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.Data.MerchantReference == "" {
		return nil, fmt.Errorf("%w: missing merchantReference", ErrBadPayload)
	}
	return &Event{
		Provider:      p.Name(),
		Type:          payload.EventType,
		Success:       payload.EventType == "SUCCESSFUL_PAYMENT",
		Reference:     payload.Data.MerchantReference,
		TransactionID: payload.Data.TransactionID,
		Amount:        payload.Data.Amount,
		Currency:      payload.Data.Currency,
		Raw:           body,
	}, nil
}
