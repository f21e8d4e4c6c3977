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

// Package converter contains the payload encoding used for values crossing
// the sandbox boundary. Hosts that need a custom encoding implement
// DataConverter and pass it through the runtime options.
package converter

import "github.com/joebowbeer/sdk-core/internal"

type (
	// Payload is a single encoded value together with encoding metadata.
	Payload = internal.Payload

	// Payloads is an ordered collection of encoded values.
	Payloads = internal.Payloads

	// DataConverter serializes/deserializes values crossing the sandbox boundary.
	DataConverter = internal.DataConverter

	// PayloadConverter converts a single value to/from a payload.
	PayloadConverter = internal.PayloadConverter

	// Value is used to encapsulate/extract an encoded value.
	Value = internal.Value

	// Values is used to encapsulate/extract one or more encoded values.
	Values = internal.Values
)

// GetDefaultDataConverter returns the default data converter: JSON for
// ordinary values and a raw binary passthrough for byte slices.
func GetDefaultDataConverter() DataConverter {
	return internal.DefaultDataConverter
}

// GetDefaultPayloadConverter returns the default single value serializer.
func GetDefaultPayloadConverter() PayloadConverter {
	return internal.DefaultPayloadConverter
}
