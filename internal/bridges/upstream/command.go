package upstream

import (
	"encoding/json"
	"fmt"
)

// Kind identifies what a command asks the device to do.
type Kind string

// Known command kinds.
const (
	KindOn    Kind = "ON"
	KindOff   Kind = "OFF"
	KindColor Kind = "COLOR"
)

// Valid reports whether k is one of the known command kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOn, KindOff, KindColor:
		return true
	default:
		return false
	}
}

// Command is a decoded instruction from the upstream source.
//
// Metadata carries the numeric payload. It is only required for COLOR,
// where it holds a 24-bit RGB value.
type Command struct {
	Kind     Kind     `json:"command"`
	Metadata *float64 `json:"metadata,omitempty"`
}

// On returns an ON command.
func On() Command { return Command{Kind: KindOn} }

// Off returns an OFF command.
func Off() Command { return Command{Kind: KindOff} }

// Color returns a COLOR command carrying rgb as metadata.
func Color(rgb int64) Command {
	v := float64(rgb)
	return Command{Kind: KindColor, Metadata: &v}
}

// String returns a compact human-readable form for logs.
func (c Command) String() string {
	if c.Metadata == nil {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s(%v)", c.Kind, *c.Metadata)
}

// Encode serialises the command in the upstream wire format.
func (c Command) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	return data, nil
}

// MalformedCommandError describes a payload that could not be decoded.
// It matches ErrMalformedCommand with errors.Is.
type MalformedCommandError struct {
	Payload []byte
	Err     error
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("%v: %v (payload %q)", ErrMalformedCommand, e.Err, e.Payload)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *MalformedCommandError) Unwrap() []error {
	return []error{ErrMalformedCommand, e.Err}
}

// wireCommand mirrors the JSON object sent by the upstream.
type wireCommand struct {
	Command  string   `json:"command"`
	Metadata *float64 `json:"metadata"`
}

// Decode parses exactly one serialised command.
//
// A payload is rejected when it is not a JSON object, when the command kind
// is not ON, OFF or COLOR, or when a COLOR command has no metadata. Unknown
// fields are ignored, as is metadata on ON and OFF.
//
// Decode has no side effects; the returned error is always a
// *MalformedCommandError.
func Decode(raw []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return Command{}, malformed(raw, err)
	}

	kind := Kind(w.Command)
	if !kind.Valid() {
		return Command{}, malformed(raw, fmt.Errorf("%w: %q", ErrUnknownCommandKind, w.Command))
	}

	if kind == KindColor && w.Metadata == nil {
		return Command{}, malformed(raw, fmt.Errorf("COLOR command requires metadata"))
	}

	return Command{Kind: kind, Metadata: w.Metadata}, nil
}

func malformed(raw []byte, err error) error {
	payload := make([]byte, len(raw))
	copy(payload, raw)
	return &MalformedCommandError{Payload: payload, Err: err}
}
