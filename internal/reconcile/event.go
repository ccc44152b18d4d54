package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Event is one inbound payment notification.
type Event struct {
	Address       string
	TxHash        string
	Confirmations int
	BlockHeight   *int64

	// Payload and Signature are the raw body and its signature header, when known.
	Payload   []byte
	Signature string

	decodeErr error
}

type webhookPayload struct {
	Address       string      `json:"address"`
	Hash          string      `json:"hash"`
	TxHash        string      `json:"tx_hash"`
	Confirmations json.Number `json:"confirmations"`
	BlockHeight   json.Number `json:"block_height"`
}

// DecodeEvent parses a webhook body. Decoding problems are kept on the event and
// reported by Ingest after the signature check.
func DecodeEvent(raw []byte, signature string) Event {
	ev := Event{Payload: raw, Signature: signature}

	var p webhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		ev.decodeErr = fmt.Errorf("invalid JSON payload: %w", err)
		return ev
	}

	ev.Address = strings.TrimSpace(p.Address)
	ev.TxHash = strings.TrimSpace(p.Hash)
	if ev.TxHash == "" {
		ev.TxHash = strings.TrimSpace(p.TxHash)
	}
	if p.Confirmations != "" {
		n, err := wholeNumber(p.Confirmations, math.MaxInt32)
		if err != nil {
			ev.decodeErr = fmt.Errorf("confirmations: %w", err)
			return ev
		}
		ev.Confirmations = int(n)
	}
	if p.BlockHeight != "" {
		n, err := wholeNumber(p.BlockHeight, math.MaxInt64)
		if err != nil {
			ev.decodeErr = fmt.Errorf("block_height: %w", err)
			return ev
		}
		if n >= 0 {
			ev.BlockHeight = &n
		}
	}
	return ev
}

// wholeNumber accepts any JSON number with no fractional part, so 2 and 2.0
// decode alike.
func wholeNumber(n json.Number, limit int64) (int64, error) {
	if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		if v > limit || v < -limit {
			return 0, fmt.Errorf("%s out of range", n)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number", n)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not a whole number", n)
	}
	if math.Abs(f) >= float64(limit) {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int64(f), nil
}

func (e Event) validate() error {
	if e.decodeErr != nil {
		return e.decodeErr
	}
	if e.Address == "" || e.TxHash == "" {
		return fmt.Errorf("missing required fields: address or tx_hash")
	}
	if e.Confirmations < 0 {
		return fmt.Errorf("confirmations must not be negative")
	}
	return nil
}
