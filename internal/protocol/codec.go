package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingType    = errors.New("missing type tag")
)

// Envelope is a single decoded frame. Body holds the complete frame so that
// type-specific top-level fields can be read by ParseEvent.
type Envelope struct {
	Type    string
	Payload json.RawMessage
	Body    json.RawMessage
}

type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes a typed envelope. A nil payload is omitted from the
// frame. Map keys are emitted in sorted order so the output is stable.
func Encode(typ string, payload any) ([]byte, error) {
	if typ == "" {
		return nil, ErrMissingType
	}

	w := wireEnvelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		w.Payload = raw
	}

	return json.Marshal(w)
}

// Decode parses a text frame into an Envelope. It fails with
// ErrMalformedFrame for invalid JSON or non-object frames and with
// ErrMissingType when the frame carries no string type tag.
func Decode(frame []byte) (*Envelope, error) {
	if !gjson.ValidBytes(frame) {
		return nil, ErrMalformedFrame
	}

	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return nil, ErrMalformedFrame
	}

	tag := root.Get("type")
	if tag.Type != gjson.String || tag.Str == "" {
		return nil, ErrMissingType
	}

	env := &Envelope{
		Type: tag.Str,
		Body: append(json.RawMessage(nil), frame...),
	}

	if p := root.Get("payload"); p.Exists() && p.Type != gjson.Null {
		env.Payload = json.RawMessage(p.Raw)
	}

	return env, nil
}
