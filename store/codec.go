package store

import (
	"encoding/json"
	"fmt"
)

// SerializeFunc converts session data to its stored form.
type SerializeFunc[S any] func(*S) (string, error)

// DeserializeFunc converts stored session data back into a session. It may
// return a nil session (e.g. for a stored JSON null), which is treated as
// absent.
type DeserializeFunc[S any] func(string) (*S, error)

// Codec is a serialize / deserialize function pair.
type Codec[S any] struct {
	Serialize   SerializeFunc[S]
	Deserialize DeserializeFunc[S]
}

// JSONCodec returns the default Codec, based on encoding/json.
func JSONCodec[S any]() Codec[S] {
	return Codec[S]{
		Serialize:   marshalJSON[S],
		Deserialize: unmarshalJSON[S],
	}
}

// NewCodec returns a Codec using the provided functions. Either may be nil, in
// which case the JSON implementation is used in its place.
func NewCodec[S any](serialize SerializeFunc[S], deserialize DeserializeFunc[S]) Codec[S] {
	c := JSONCodec[S]()
	if serialize != nil {
		c.Serialize = serialize
	}
	if deserialize != nil {
		c.Deserialize = deserialize
	}
	return c
}

// Encode serializes s, wrapping any failure with ErrInvalidSessionData.
func (c Codec[S]) Encode(s *S) (string, error) {
	val, err := c.Serialize(s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize session data (error: %v): %w", err, ErrInvalidSessionData)
	}
	return val, nil
}

// Decode deserializes val, wrapping any failure with
// ErrInvalidStoredSessionData.
func (c Codec[S]) Decode(val string) (*S, error) {
	s, err := c.Deserialize(val)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize stored session data (error: %v): %w", err, ErrInvalidStoredSessionData)
	}
	return s, nil
}

func marshalJSON[S any](s *S) (string, error) {
	bs, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func unmarshalJSON[S any](val string) (*S, error) {
	// Unmarshalling into a pointer leaves it nil for a stored "null".
	var s *S
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, err
	}
	return s, nil
}
