// The MIT License
//
// Copyright (c) 2020 Temporal Technologies Inc.  All rights reserved.
//
// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

const (
	metadataEncoding     = "encoding"
	metadataEncodingRaw  = "binary/plain"
	metadataEncodingJSON = "json/plain"
)

type (
	// Payload is a single encoded value together with encoding metadata.
	Payload struct {
		Metadata map[string][]byte `json:"metadata,omitempty"`
		Data     []byte            `json:"data,omitempty"`
	}

	// Payloads is an ordered collection of encoded values.
	Payloads struct {
		Payloads []*Payload `json:"payloads,omitempty"`
	}

	// Value is used to encapsulate/extract an encoded value.
	Value interface {
		// HasValue returns whether there is a value encoded.
		HasValue() bool
		// Get extracts the encoded value into a strong typed value pointer.
		Get(valuePtr interface{}) error
	}

	// Values is used to encapsulate/extract one or more encoded values.
	Values interface {
		// HasValues returns whether there are values encoded.
		HasValues() bool
		// Get extracts the encoded values into strong typed value pointers.
		Get(valuePtr ...interface{}) error
	}

	// DataConverter serializes/deserializes workflow arguments, results, and
	// failure details crossing the sandbox boundary.
	DataConverter interface {
		// ToData implements conversion of a list of values.
		ToData(value ...interface{}) (*Payloads, error)
		// FromData implements conversion of an array of values of different types.
		FromData(input *Payloads, valuePtrs ...interface{}) error
	}

	// PayloadConverter converts a single value to/from a payload.
	PayloadConverter interface {
		// ToData converts a single value to a payload.
		ToData(value interface{}) (*Payload, error)
		// FromData converts a single value from a payload.
		FromData(input *Payload, valuePtr interface{}) error
	}

	defaultPayloadConverter struct{}

	defaultDataConverter struct {
		payloadConverter PayloadConverter
	}

	// EncodedValues is a wrapper of encoded payloads extracted on demand.
	EncodedValues struct {
		values *Payloads
		dc     DataConverter
	}

	// ErrorDetailsValues holds raw error details before they are encoded.
	ErrorDetailsValues []interface{}
)

var (
	// DefaultPayloadConverter is the default single value serializer.
	DefaultPayloadConverter = &defaultPayloadConverter{}

	// DefaultDataConverter is the default data converter used by the runtime.
	DefaultDataConverter = &defaultDataConverter{
		payloadConverter: DefaultPayloadConverter,
	}

	// ErrMetadataIsNotSet is returned when payload metadata is not set.
	ErrMetadataIsNotSet = errors.New("metadata is not set")
	// ErrEncodingIsNotSet is returned when payload encoding metadata is not set.
	ErrEncodingIsNotSet = errors.New("payload encoding metadata is not set")
	// ErrEncodingIsNotSupported is returned when payload encoding is not supported.
	ErrEncodingIsNotSupported = errors.New("payload encoding is not supported")
	// ErrUnableToEncodeJSON is returned when unable to encode to JSON.
	ErrUnableToEncodeJSON = errors.New("unable to encode to JSON")
	// ErrUnableToDecodeJSON is returned when unable to decode JSON.
	ErrUnableToDecodeJSON = errors.New("unable to decode JSON")
	// ErrUnableToSetBytes is returned when unable to set a []byte value.
	ErrUnableToSetBytes = errors.New("unable to set []byte value")
	// ErrNoData is returned when trying to extract strong typed data while
	// there is no data available.
	ErrNoData = errors.New("no data available")
	// ErrTooManyArg is returned when trying to extract strong typed data with
	// more arguments than available data.
	ErrTooManyArg = errors.New("too many arguments")
)

// getDefaultDataConverter returns the default data converter used by the runtime.
func getDefaultDataConverter() DataConverter {
	return DefaultDataConverter
}

func (dc *defaultDataConverter) ToData(values ...interface{}) (*Payloads, error) {
	if len(values) == 0 {
		return nil, nil
	}

	result := &Payloads{}
	for i, value := range values {
		payload, err := dc.payloadConverter.ToData(value)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}

		result.Payloads = append(result.Payloads, payload)
	}

	return result, nil
}

func (dc *defaultDataConverter) FromData(payloads *Payloads, valuePtrs ...interface{}) error {
	if payloads == nil {
		return nil
	}

	if len(valuePtrs) > len(payloads.Payloads) {
		return ErrTooManyArg
	}

	for i, payload := range payloads.Payloads {
		if i >= len(valuePtrs) {
			break
		}

		err := dc.payloadConverter.FromData(payload, valuePtrs[i])
		if err != nil {
			return fmt.Errorf("payload item %d: %w", i, err)
		}
	}

	return nil
}

func (vs *defaultPayloadConverter) ToData(value interface{}) (*Payload, error) {
	var payload *Payload
	if bytes, isByteSlice := value.([]byte); isByteSlice {
		payload = &Payload{
			Metadata: map[string][]byte{
				metadataEncoding: []byte(metadataEncodingRaw),
			},
			Data: bytes,
		}
	} else {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnableToEncodeJSON, err)
		}
		payload = &Payload{
			Metadata: map[string][]byte{
				metadataEncoding: []byte(metadataEncodingJSON),
			},
			Data: data,
		}
	}

	return payload, nil
}

func (vs *defaultPayloadConverter) FromData(payload *Payload, valuePtr interface{}) error {
	if payload == nil {
		return nil
	}

	metadata := payload.Metadata
	if metadata == nil {
		return ErrMetadataIsNotSet
	}

	var encoding string
	if e, ok := metadata[metadataEncoding]; ok {
		encoding = string(e)
	} else {
		return ErrEncodingIsNotSet
	}

	switch encoding {
	case metadataEncodingRaw:
		valueBytes := reflect.ValueOf(valuePtr).Elem()
		if !valueBytes.CanSet() {
			return ErrUnableToSetBytes
		}
		valueBytes.SetBytes(payload.Data)
	case metadataEncodingJSON:
		err := json.Unmarshal(payload.Data, valuePtr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnableToDecodeJSON, err)
		}
	default:
		return fmt.Errorf("encoding %s: %w", encoding, ErrEncodingIsNotSupported)
	}

	return nil
}

func newEncodedValues(values *Payloads, dc DataConverter) Values {
	if dc == nil {
		dc = getDefaultDataConverter()
	}
	return &EncodedValues{values: values, dc: dc}
}

// HasValues returns whether there are values encoded.
func (b *EncodedValues) HasValues() bool {
	return b.values != nil && len(b.values.Payloads) > 0
}

// Get extracts the encoded values into strong typed value pointers.
func (b *EncodedValues) Get(valuePtrs ...interface{}) error {
	if !b.HasValues() {
		return ErrNoData
	}
	return b.dc.FromData(b.values, valuePtrs...)
}

// HasValues returns whether there are values available.
func (b ErrorDetailsValues) HasValues() bool {
	return len(b) != 0
}

// Get copies the raw detail values into the provided pointers.
func (b ErrorDetailsValues) Get(valuePtrs ...interface{}) error {
	if !b.HasValues() {
		return ErrNoData
	}
	if len(valuePtrs) > len(b) {
		return ErrTooManyArg
	}
	for i, item := range valuePtrs {
		if err := assignValue(item, b[i]); err != nil {
			return err
		}
	}
	return nil
}

// encodeArgs converts a list of raw values to payloads.
func encodeArgs(dc DataConverter, args []interface{}) (*Payloads, error) {
	if dc == nil {
		dc = getDefaultDataConverter()
	}
	return dc.ToData(args...)
}

// assignValue sets *valuePtr to value using reflection.
func assignValue(valuePtr interface{}, value interface{}) error {
	rv := reflect.ValueOf(valuePtr)
	if rv.Kind() != reflect.Ptr {
		return errors.New("value parameter is not a pointer")
	}
	fv := reflect.ValueOf(value)
	if fv.IsValid() {
		if !fv.Type().AssignableTo(rv.Elem().Type()) {
			return fmt.Errorf("unable to assign value of type %T to %s", value, rv.Elem().Type())
		}
		rv.Elem().Set(fv)
	}
	return nil
}
