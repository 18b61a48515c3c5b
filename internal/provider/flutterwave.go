package provider

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
)

// FlutterwaveSignatureHeader carries the merchant's secret hash on
// every Flutterwave delivery.
const FlutterwaveSignatureHeader = "verif-hash"

// Flutterwave handles Flutterwave webhook deliveries. Flutterwave does
// not sign the payload; it sends the merchant's configured secret hash
// verbatim in the verif-hash header.
type Flutterwave struct {
	SecretHash string
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

// Name implements Provider.
func (f *Flutterwave) Name() string { return "flutterwave" }

// Match implements Provider. The signature header is checked first; the
// payload field names are the fallback for deliveries that lost headers
// on the way through a proxy.
func (f *Flutterwave) Match(header http.Header, body []byte) bool {
	if header.Get(FlutterwaveSignatureHeader) != "" {
		return true
	}
	var probe struct {
		Event string `json:"event"`
		Data  *struct {
			TxRef *string `json:"tx_ref"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Event != "" && probe.Data != nil && probe.Data.TxRef != nil
}

// Verify implements Provider.
func (f *Flutterwave) Verify(header http.Header, _ []byte) error {
	got := header.Get(FlutterwaveSignatureHeader)
	if got == "" {
		return fmt.Errorf("missing %s header: %w", FlutterwaveSignatureHeader, ErrInvalidSignature)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(f.SecretHash)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Parse implements Provider. A payment counts as successful only when
// the event is charge.completed and the charge status is successful.
func (f *Flutterwave) Parse(body []byte) (*Event, error) {
	var payload flutterwavePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.Data.TxRef == "" {
		return nil, fmt.Errorf("%w: missing tx_ref", ErrBadPayload)
	}
	return &Event{
		Provider:      f.Name(),
		Type:          payload.Event,
		Success:       payload.Event == "charge.completed" && payload.Data.Status == "successful",
		Reference:     payload.Data.TxRef,
		TransactionID: payload.Data.FlwRef,
		Amount:        payload.Data.Amount,
		Currency:      payload.Data.Currency,
		Raw:           body,
	}, nil
}
