// Package appmsg implements the key-tagged dictionary protocol spoken
// between the watch and its companion, and an asynchronous channel that
// carries it.
package appmsg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TupleType is the wire type tag of a dictionary value
type TupleType uint8

const (
	TypeByteArray TupleType = 0
	TypeCString   TupleType = 1
	TypeUint      TupleType = 2
	TypeInt       TupleType = 3
)

// String returns the type name
func (t TupleType) String() string {
	switch t {
	case TypeByteArray:
		return "bytes"
	case TypeCString:
		return "cstring"
	case TypeUint:
		return "uint"
	case TypeInt:
		return "int"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

const (
	maxTuples     = math.MaxUint8
	maxValueLen   = math.MaxUint16
	tupleHeaderSz = 4 + 1 + 2
)

var (
	// ErrTruncated means the encoded dictionary ended mid-tuple
	ErrTruncated = errors.New("appmsg: truncated dictionary")

	// ErrTooLarge means a dictionary or value exceeds the wire limits
	ErrTooLarge = errors.New("appmsg: dictionary too large")
)

// Tuple is one key/value entry
type Tuple struct {
	Key   uint32
	Type  TupleType
	Value []byte
}

// Int returns an integer value, sign-extended from its stored width
func (t Tuple) Int() int64 {
	switch len(t.Value) {
	case 1:
		return int64(int8(t.Value[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(t.Value)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(t.Value)))
	}
	return 0
}

// Uint returns an unsigned integer value
func (t Tuple) Uint() uint64 {
	switch len(t.Value) {
	case 1:
		return uint64(t.Value[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(t.Value))
	case 4:
		return uint64(binary.LittleEndian.Uint32(t.Value))
	}
	return 0
}

// CString returns a string value up to its NUL terminator
func (t Tuple) CString() string {
	if i := bytes.IndexByte(t.Value, 0); i >= 0 {
		return string(t.Value[:i])
	}
	return string(t.Value)
}

// Dictionary is an ordered collection of tuples
type Dictionary struct {
	tuples []Tuple
}

// NewDictionary returns an empty dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{}
}

// Len returns the number of tuples
func (d *Dictionary) Len() int {
	return len(d.tuples)
}

// Tuples returns the entries in wire order
func (d *Dictionary) Tuples() []Tuple {
	return d.tuples
}

// Find returns the first tuple with key
func (d *Dictionary) Find(key uint32) (Tuple, bool) {
	for _, t := range d.tuples {
		if t.Key == key {
			return t, true
		}
	}
	return Tuple{}, false
}

func (d *Dictionary) add(key uint32, typ TupleType, value []byte) *Dictionary {
	d.tuples = append(d.tuples, Tuple{Key: key, Type: typ, Value: value})
	return d
}

// WriteUint8 appends an unsigned 8-bit value
func (d *Dictionary) WriteUint8(key uint32, v uint8) *Dictionary {
	return d.add(key, TypeUint, []byte{v})
}

// WriteInt16 appends a signed 16-bit value
func (d *Dictionary) WriteInt16(key uint32, v int16) *Dictionary {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return d.add(key, TypeInt, b)
}

// WriteInt32 appends a signed 32-bit value
func (d *Dictionary) WriteInt32(key uint32, v int32) *Dictionary {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return d.add(key, TypeInt, b)
}

// WriteCString appends a NUL-terminated string
func (d *Dictionary) WriteCString(key uint32, s string) *Dictionary {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return d.add(key, TypeCString, b)
}

// WriteData appends a raw byte array
func (d *Dictionary) WriteData(key uint32, data []byte) *Dictionary {
	return d.add(key, TypeByteArray, append([]byte(nil), data...))
}

// EncodedSize returns the number of bytes MarshalBinary produces
func (d *Dictionary) EncodedSize() int {
	n := 1
	for _, t := range d.tuples {
		n += tupleHeaderSz + len(t.Value)
	}
	return n
}

// MarshalBinary encodes the dictionary as
// count:u8 { key:u32le type:u8 length:u16le value }
func (d *Dictionary) MarshalBinary() ([]byte, error) {
	if len(d.tuples) > maxTuples {
		return nil, fmt.Errorf("%w: %d tuples", ErrTooLarge, len(d.tuples))
	}

	buf := make([]byte, 0, d.EncodedSize())
	buf = append(buf, uint8(len(d.tuples)))
	for _, t := range d.tuples {
		if len(t.Value) > maxValueLen {
			return nil, fmt.Errorf("%w: key %d value of %d bytes", ErrTooLarge, t.Key, len(t.Value))
		}
		buf = binary.LittleEndian.AppendUint32(buf, t.Key)
		buf = append(buf, uint8(t.Type))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Value)))
		buf = append(buf, t.Value...)
	}
	return buf, nil
}

// UnmarshalDictionary decodes a dictionary produced by MarshalBinary
func UnmarshalDictionary(b []byte) (*Dictionary, error) {
	if len(b) < 1 {
		return nil, ErrTruncated
	}

	count := int(b[0])
	b = b[1:]
	d := &Dictionary{tuples: make([]Tuple, 0, count)}
	for i := 0; i < count; i++ {
		if len(b) < tupleHeaderSz {
			return nil, fmt.Errorf("%w: tuple %d header", ErrTruncated, i)
		}
		key := binary.LittleEndian.Uint32(b[0:4])
		typ := TupleType(b[4])
		n := int(binary.LittleEndian.Uint16(b[5:7]))
		b = b[tupleHeaderSz:]
		if len(b) < n {
			return nil, fmt.Errorf("%w: tuple %d wants %d bytes, %d left", ErrTruncated, i, n, len(b))
		}
		d.add(key, typ, append([]byte(nil), b[:n]...))
		b = b[n:]
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("appmsg: %d trailing bytes after %d tuples", len(b), count)
	}
	return d, nil
}
