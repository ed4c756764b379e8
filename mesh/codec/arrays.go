// Package codec serializes the typed arrays stored in the columnar store.
//
// Every encoded array starts with a one-byte type tag followed by a uvarint
// element count. Integers and floats are fixed-width big-endian so that a
// column can be sliced without decoding its neighbours; strings are
// length-prefixed.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ArrayType tags the element type of an encoded array
type ArrayType byte

const (
	TypeInts ArrayType = iota + 1
	TypeFloats
	TypeStrings
	TypeMatrix // Rows of float64, each row length-prefixed
	TypeIntMatrix
)

var (
	// ErrTruncated indicates an encoded array shorter than its header claims
	ErrTruncated = errors.New("truncated array")

	// ErrTypeMismatch indicates decoding with the wrong array type
	ErrTypeMismatch = errors.New("array type mismatch")
)

func header(t ArrayType, n int, payload int) []byte {
	buf := make([]byte, 1, 1+binary.MaxVarintLen64+payload)
	buf[0] = byte(t)
	return binary.AppendUvarint(buf, uint64(n))
}

func readHeader(want ArrayType, data []byte) (int, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if ArrayType(data[0]) != want {
		return 0, nil, fmt.Errorf("%w: want %d, got %d", ErrTypeMismatch, want, data[0])
	}
	n, k := binary.Uvarint(data[1:])
	if k <= 0 {
		return 0, nil, fmt.Errorf("%w: bad count", ErrTruncated)
	}
	return int(n), data[1+k:], nil
}

// EncodeInts encodes int64 values
func EncodeInts(values []int64) []byte {
	buf := header(TypeInts, len(values), 8*len(values))
	for _, v := range values {
		buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	}
	return buf
}

// DecodeInts decodes an array written by EncodeInts. Empty input yields nil.
func DecodeInts(data []byte) ([]int64, error) {
	n, rest, err := readHeader(TypeInts, data)
	if err != nil || n == 0 {
		return nil, err
	}
	if len(rest) < 8*n {
		return nil, fmt.Errorf("%w: %d ints need %d bytes, have %d", ErrTruncated, n, 8*n, len(rest))
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(rest[8*i:]))
	}
	return out, nil
}

// EncodeFloats encodes float64 values
func EncodeFloats(values []float64) []byte {
	buf := header(TypeFloats, len(values), 8*len(values))
	for _, v := range values {
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

// DecodeFloats decodes an array written by EncodeFloats
func DecodeFloats(data []byte) ([]float64, error) {
	n, rest, err := readHeader(TypeFloats, data)
	if err != nil || n == 0 {
		return nil, err
	}
	if len(rest) < 8*n {
		return nil, fmt.Errorf("%w: %d floats need %d bytes, have %d", ErrTruncated, n, 8*n, len(rest))
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(rest[8*i:]))
	}
	return out, nil
}

// EncodeStrings encodes a list of strings
func EncodeStrings(values []string) []byte {
	size := 0
	for _, s := range values {
		size += binary.MaxVarintLen32 + len(s)
	}
	buf := header(TypeStrings, len(values), size)
	for _, s := range values {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// DecodeStrings decodes an array written by EncodeStrings
func DecodeStrings(data []byte) ([]string, error) {
	n, rest, err := readHeader(TypeStrings, data)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		l, k := binary.Uvarint(rest)
		if k <= 0 || uint64(len(rest)-k) < l {
			return nil, fmt.Errorf("%w: string %d", ErrTruncated, i)
		}
		out[i] = string(rest[k : k+int(l)])
		rest = rest[k+int(l):]
	}
	return out, nil
}

// EncodeString encodes a single string
func EncodeString(s string) []byte {
	return EncodeStrings([]string{s})
}

// DecodeString decodes a value written by EncodeString
func DecodeString(data []byte) (string, error) {
	values, err := DecodeStrings(data)
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// EncodeMatrix encodes ragged rows of float64
func EncodeMatrix(rows [][]float64) []byte {
	size := 0
	for _, r := range rows {
		size += binary.MaxVarintLen32 + 8*len(r)
	}
	buf := header(TypeMatrix, len(rows), size)
	for _, r := range rows {
		buf = binary.AppendUvarint(buf, uint64(len(r)))
		for _, v := range r {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf
}

// DecodeMatrix decodes rows written by EncodeMatrix
func DecodeMatrix(data []byte) ([][]float64, error) {
	n, rest, err := readHeader(TypeMatrix, data)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([][]float64, n)
	for i := range out {
		l, k := binary.Uvarint(rest)
		if k <= 0 || uint64(len(rest)-k) < 8*l {
			return nil, fmt.Errorf("%w: row %d", ErrTruncated, i)
		}
		rest = rest[k:]
		row := make([]float64, l)
		for j := range row {
			row[j] = math.Float64frombits(binary.BigEndian.Uint64(rest[8*j:]))
		}
		out[i] = row
		rest = rest[8*l:]
	}
	return out, nil
}

// EncodeIntMatrix encodes ragged rows of int64, used for connectivity
func EncodeIntMatrix(rows [][]int64) []byte {
	size := 0
	for _, r := range rows {
		size += binary.MaxVarintLen32 + 8*len(r)
	}
	buf := header(TypeIntMatrix, len(rows), size)
	for _, r := range rows {
		buf = binary.AppendUvarint(buf, uint64(len(r)))
		for _, v := range r {
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		}
	}
	return buf
}

// DecodeIntMatrix decodes rows written by EncodeIntMatrix
func DecodeIntMatrix(data []byte) ([][]int64, error) {
	n, rest, err := readHeader(TypeIntMatrix, data)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([][]int64, n)
	for i := range out {
		l, k := binary.Uvarint(rest)
		if k <= 0 || uint64(len(rest)-k) < 8*l {
			return nil, fmt.Errorf("%w: row %d", ErrTruncated, i)
		}
		rest = rest[k:]
		row := make([]int64, l)
		for j := range row {
			row[j] = int64(binary.BigEndian.Uint64(rest[8*j:]))
		}
		out[i] = row
		rest = rest[8*l:]
	}
	return out, nil
}
