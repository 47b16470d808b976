package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appoutbox "rentfleet/internal/app/outbox"
)

const (
	specVersion      = "1.0"
	typeVersion      = ".v1"
	cloudEventsMedia = "application/cloudevents+json"
)

// Envelope is the CloudEvents 1.0 structured-mode form of an outbox record.
// The record id doubles as the CloudEvent id so consumers can deduplicate.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

var ErrMalformedEnvelope = errors.New("outbox: malformed cloud event")

// Wrap encodes a record as a CloudEvent and returns the transport headers.
func Wrap(rec Record, source string) ([]byte, map[string]string, error) {
	if !json.Valid(rec.Payload) {
		return nil, nil, fmt.Errorf("%w: payload of %s is not json", ErrMalformedEnvelope, rec.ID)
	}
	env := Envelope{
		SpecVersion:     specVersion,
		ID:              rec.ID,
		Type:            rec.Name + typeVersion,
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     rec.Headers["traceparent"],
		Data:            json.RawMessage(rec.Payload),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": cloudEventsMedia}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// Unwrap turns a CloudEvent back into the event record it was built from.
func Unwrap(payload []byte) (appoutbox.EventRecord, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return appoutbox.EventRecord{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.SpecVersion != specVersion || env.ID == "" || env.Type == "" {
		return appoutbox.EventRecord{}, fmt.Errorf("%w: missing required attributes", ErrMalformedEnvelope)
	}
	rec := appoutbox.EventRecord{
		ID:         env.ID,
		Name:       strings.TrimSuffix(env.Type, typeVersion),
		Payload:    []byte(env.Data),
		OccurredAt: env.Time,
		Aggregate:  env.Subject,
		Headers:    map[string]string{},
	}
	if env.TraceParent != "" {
		rec.Headers["traceparent"] = env.TraceParent
	}
	return rec, nil
}
