package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// NewEnvelope wraps payload in a v1 envelope correlated to equipmentID.
func NewEnvelope(eventType, producer, equipmentID string, payload any) (catalog.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return catalog.Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return catalog.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: equipmentID,
		Payload:       raw,
	}, nil
}

func UnmarshalEnvelope(b []byte) (catalog.Envelope, error) {
	var env catalog.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the payload of an envelope into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
