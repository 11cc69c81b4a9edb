package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyPayload = errors.New("empty payload")

// DecodeBatch parses a JSON array of events, or a single event object.
func DecodeBatch(data []byte) ([]InboundEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	if trimmed[0] == '{' {
		var one InboundEvent
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return []InboundEvent{one}, nil
	}

	var events []InboundEvent
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if events == nil {
		events = []InboundEvent{}
	}
	return events, nil
}
