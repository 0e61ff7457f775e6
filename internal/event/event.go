// Package event parses and validates the inbound receipt-event envelope
// that announces a stored message awaiting forwarding.
package event

import (
	"encoding/json"
	"fmt"
)

// Expected discriminator values for a receipt event record.
const (
	expectedSource  = "aws:ses"
	expectedVersion = "1.0"
)

// Notification is the validated payload of a receipt event: which message
// arrived, for whom, and under what subject.
type Notification struct {
	MessageID  string
	Recipients []string
	Subject    string
}

// ValidationError reports a malformed envelope. It is fatal for the
// invocation: nothing can be resolved without a valid notification.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid receipt event: " + e.Reason
}

type envelope struct {
	Records []record `json:"Records"`
}

type record struct {
	EventSource  string     `json:"eventSource"`
	EventVersion string     `json:"eventVersion"`
	SES          *sesRecord `json:"ses"`
}

type sesRecord struct {
	Mail    *mailRecord    `json:"mail"`
	Receipt *receiptRecord `json:"receipt"`
}

type mailRecord struct {
	MessageID     string `json:"messageId"`
	CommonHeaders struct {
		Subject string `json:"subject"`
	} `json:"commonHeaders"`
}

type receiptRecord struct {
	Recipients []string `json:"recipients"`
}

// ParseEnvelope decodes and validates a receipt event. It fails with a
// ValidationError when the envelope does not contain exactly one record
// with the expected discriminators and substructures.
func ParseEnvelope(data []byte) (*Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if n := len(env.Records); n != 1 {
		return nil, &ValidationError{Reason: fmt.Sprintf("expected exactly 1 record, got %d", n)}
	}
	rec := env.Records[0]

	if rec.EventSource != expectedSource {
		return nil, &ValidationError{Reason: fmt.Sprintf("unexpected event source %q", rec.EventSource)}
	}
	if rec.EventVersion != expectedVersion {
		return nil, &ValidationError{Reason: fmt.Sprintf("unexpected event version %q", rec.EventVersion)}
	}
	if rec.SES == nil {
		return nil, &ValidationError{Reason: "missing ses record"}
	}
	if rec.SES.Mail == nil {
		return nil, &ValidationError{Reason: "missing mail record"}
	}
	if rec.SES.Receipt == nil {
		return nil, &ValidationError{Reason: "missing receipt record"}
	}

	return &Notification{
		MessageID:  rec.SES.Mail.MessageID,
		Recipients: rec.SES.Receipt.Recipients,
		Subject:    rec.SES.Mail.CommonHeaders.Subject,
	}, nil
}
