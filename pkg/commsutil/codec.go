package commsutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EnvelopeHeader holds the routing fields shared by every envelope kind.
type EnvelopeHeader struct {
	Type           string  `json:"type"`
	Version        string  `json:"version"`
	RequestID      *string `json:"requestId"`
	SubscriptionID *string `json:"subscriptionId"`
}

// Key returns "<type>@<version>" for logging.
func (h EnvelopeHeader) Key() string {
	return h.Type + "@" + h.Version
}

// EncodeEnvelope serializes an envelope. Only JSON objects are valid envelopes.
func EncodeEnvelope(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("{")) {
		return nil, fmt.Errorf("commsutil: envelope must be a JSON object, got %.20s", data)
	}
	return data, nil
}

// PeekHeader decodes only the routing fields of an envelope.
func PeekHeader(data []byte) (EnvelopeHeader, error) {
	var h EnvelopeHeader
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return h, fmt.Errorf("commsutil: not an envelope")
	}
	if err := json.Unmarshal(trimmed, &h); err != nil {
		return h, err
	}
	return h, nil
}
