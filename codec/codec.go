// Package codec encodes envelope payloads, stored values and query
// keys/values as canonical CBOR.
//
// Encoding uses the Core Deterministic profile: map keys are sorted
// at every nesting level, so equal values always produce equal bytes
// regardless of Go map iteration order.
package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		// Decode untyped maps with string keys so payloads round-trip
		// into map[string]any rather than map[any]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// The encoder does not validate UTF-8, so neither does the
		// decoder: every encoding must decode again.
		UTF8: cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build decode mode: %v", err))
	}
}

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor unmarshal: %w", err)
	}
	return nil
}

// Convert re-encodes src and decodes it into dst. It moves values
// between untyped payload maps and typed structs.
func Convert(src, dst any) error {
	data, err := Marshal(src)
	if err != nil {
		return err
	}
	return Unmarshal(data, dst)
}
