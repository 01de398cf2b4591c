// Package bus carries request/response traffic between the daemon and its
// clients, and fans out change events to whoever is listening.
package bus

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrUnknownAction = errors.New("unknown action")

type Request struct {
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the single answer to a Request. Data is set only on success
// and Error only on failure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandlerFunc answers one action. The returned value becomes Response.Data.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Decode unmarshals payload into v. An empty payload leaves v untouched.
func Decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

// DecodeData converts Response.Data into v. Data is a typed value when the
// router answered in-process and json.RawMessage when it came over HTTP.
func DecodeData(data any, v any) error {
	if data == nil {
		return nil
	}
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, v)
}
