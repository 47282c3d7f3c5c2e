// Package xdr implements the atom wire format: a little-endian 32-bit header
// packing (length<<1 | narrowBit) followed by the raw code units, plus a
// snapshot container for transcoding a whole table.
//
// Decoding never constructs a free-standing value: decoded content is
// re-interned through the runtime, so deserialized atoms keep the
// single-canonical-instance invariant.
package xdr

import (
	"encoding/binary"
	"errors"

	"github.com/hupe1980/atomgo/atom"
)

var (
	// ErrTruncated is returned when a record ends before its declared
	// content.
	ErrTruncated = errors.New("xdr: truncated atom record")
	// ErrInvalidHeader is returned when a record declares an impossible
	// length.
	ErrInvalidHeader = errors.New("xdr: invalid atom record header")
)

// Interner re-interns decoded content. *atomgo.Runtime implements it.
type Interner interface {
	InternLatin1(units []byte, pin bool) (*atom.Atom, error)
	InternUTF16(units []uint16, pin bool) (*atom.Atom, error)
}

// AppendAtom appends a's record to buf. The header and any wide code units
// are written little endian regardless of host byte order.
func AppendAtom(buf []byte, a *atom.Atom) []byte {
	header := uint32(a.Len()) << 1
	if a.Encoding() == atom.Latin1 {
		header |= 1
	}
	buf = binary.LittleEndian.AppendUint32(buf, header)

	if narrow := a.Latin1Units(); a.Encoding() == atom.Latin1 {
		return append(buf, narrow...)
	}
	for _, u := range a.UTF16Units() {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return buf
}

// EncodeAtom encodes a single atom record.
func EncodeAtom(a *atom.Atom) []byte {
	return AppendAtom(make([]byte, 0, 4+a.Len()*2), a)
}

// DecodeAtom decodes one record from data and re-interns its content through
// in. It returns the canonical atom and the remaining bytes.
func DecodeAtom(in Interner, data []byte) (*atom.Atom, []byte, error) {
	if len(data) < 4 {
		return nil, nil, ErrTruncated
	}
	header := binary.LittleEndian.Uint32(data)
	data = data[4:]

	length := int(header >> 1)
	narrow := header&1 != 0
	if length > atom.MaxLength {
		return nil, nil, ErrInvalidHeader
	}

	if narrow {
		if len(data) < length {
			return nil, nil, ErrTruncated
		}
		a, err := in.InternLatin1(data[:length], false)
		if err != nil {
			return nil, nil, err
		}
		return a, data[length:], nil
	}

	if len(data) < 2*length {
		return nil, nil, ErrTruncated
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	a, err := in.InternUTF16(units, false)
	if err != nil {
		return nil, nil, err
	}
	return a, data[2*length:], nil
}
