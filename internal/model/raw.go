package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RawString is a loosely-typed text field from model output. It accepts a
// JSON string, null, or any scalar (numbers and booleans keep their literal
// text).
type RawString string

func (s *RawString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = RawString(v)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("raw field: expected scalar, got %s", string(b[:1]))
	}
	*s = RawString(b)
	return nil
}

// Value returns the trimmed text and whether it is present. Empty strings
// and the literal "null" (any case) count as absent.
func (s RawString) Value() (string, bool) {
	v := strings.TrimSpace(string(s))
	if v == "" || strings.EqualFold(v, "null") {
		return "", false
	}
	return v, true
}

// RawEvent is one record as handed over by the extraction collaborator.
// Every field may independently be absent, null, or "null".
type RawEvent struct {
	Title     RawString `json:"title"`
	Date      RawString `json:"date"`
	StartTime RawString `json:"startTime"`
	EndTime   RawString `json:"endTime"`
	Type      RawString `json:"type"`
	Notes     RawString `json:"notes"`
}

// ErrEmptyPayload is returned when there is nothing to decode.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeRawEvents accepts either the extraction envelope {"events":[...]}
// or a bare JSON array of records.
func DecodeRawEvents(data []byte) ([]RawEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if data[0] == '[' {
		var out []RawEvent
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode raw events: %w", err)
		}
		return out, nil
	}

	var envelope struct {
		Events []RawEvent `json:"events"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode raw events: %w", err)
	}
	return envelope.Events, nil
}

// DecodeEvents accepts either {"events":[...]} or a bare array of canonical
// events, the two shapes the JSON export and the CLI produce.
func DecodeEvents(data []byte) ([]Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if data[0] == '[' {
		var out []Event
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return out, nil
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return res.Events, nil
}
