// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragflow/core"
)

// documentFormatVersion prefixes every encoded document.
const documentFormatVersion uint64 = 1

// zeroTime marks an unset timestamp on the wire.
const zeroTime int64 = math.MinInt64

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, documentSize(doc))
	n := varint.Uint64.Marshal(documentFormatVersion, buf)
	n += varint.Uint64.Marshal(uint64(doc.Id), buf[n:])
	n += ord.String.Marshal(doc.PageID, buf[n:])
	n += ord.String.Marshal(doc.Title, buf[n:])
	n += ord.String.Marshal(doc.Contents, buf[n:])
	n += ord.String.Marshal(doc.URL, buf[n:])
	n += marshalVector(doc.Vector, buf[n:])
	n += varint.Int64.Marshal(timeToWire(doc.InsertedAt), buf[n:])
	varint.Int64.Marshal(timeToWire(doc.UpdatedAt), buf[n:])
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	var (
		doc core.Document
		n   int
	)
	fail := func(field string, err error) (*core.Document, error) {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerializationFailed, field, err)
	}

	version, read, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return fail("version", err)
	}
	if version != documentFormatVersion {
		return nil, fmt.Errorf("%w: unsupported document version %d", ErrSerializationFailed, version)
	}
	n += read

	id, read, err := varint.Uint64.Unmarshal(data[n:])
	if err != nil {
		return fail("id", err)
	}
	doc.Id = core.ID(id)
	n += read

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"page id", &doc.PageID},
		{"title", &doc.Title},
		{"contents", &doc.Contents},
		{"url", &doc.URL},
	} {
		v, read, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return fail(field.name, err)
		}
		*field.dst = v
		n += read
	}

	vector, read, err := unmarshalVector(data[n:])
	if err != nil {
		return fail("vector", err)
	}
	doc.Vector = vector
	n += read

	inserted, read, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return fail("inserted at", err)
	}
	doc.InsertedAt = timeFromWire(inserted)
	n += read

	updated, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return fail("updated at", err)
	}
	doc.UpdatedAt = timeFromWire(updated)

	return &doc, nil
}

func documentSize(doc *core.Document) int {
	size := varint.Uint64.Size(documentFormatVersion)
	size += varint.Uint64.Size(uint64(doc.Id))
	size += ord.String.Size(doc.PageID)
	size += ord.String.Size(doc.Title)
	size += ord.String.Size(doc.Contents)
	size += ord.String.Size(doc.URL)
	size += vectorSize(doc.Vector)
	size += varint.Int64.Size(timeToWire(doc.InsertedAt))
	size += varint.Int64.Size(timeToWire(doc.UpdatedAt))
	return size
}

func vectorSize(v []float32) int {
	size := varint.Uint64.Size(uint64(len(v)))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) ([]float32, int, error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	// Every element takes at least one byte.
	if length > uint64(len(bs)-n) {
		return nil, n, ErrTruncatedData
	}
	v := make([]float32, length)
	for i := range v {
		bits, read, err := varint.Uint32.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		v[i] = math.Float32frombits(bits)
		n += read
	}
	return v, n, nil
}

func timeToWire(t time.Time) int64 {
	if t.IsZero() {
		return zeroTime
	}
	return t.UnixMicro()
}

func timeFromWire(v int64) time.Time {
	if v == zeroTime {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
