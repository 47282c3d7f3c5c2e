package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/atomgo/atom"
	"github.com/hupe1980/atomgo/internal/hash"
)

// Compression selects how a snapshot's record stream is compressed.
type Compression uint8

const (
	// CompressionNone stores records uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = 2
)

// Snapshot container: 4-byte magic, version byte, compression byte, 4-byte
// little-endian atom count, then the record stream followed by a 4-byte
// CRC32-C of the records. Trailer and records go through the compressor
// together.
var snapshotMagic = [4]byte{'A', 'T', 'O', 'M'}

const snapshotVersion = 1

// ErrInvalidSnapshot is returned when a snapshot header is malformed or of
// an unsupported version.
var ErrInvalidSnapshot = errors.New("xdr: invalid snapshot")

// WriteSnapshot encodes atoms into w. The caller supplies a consistent view
// of the table; atoms are immutable, so the slice can be captured under the
// table lock and written afterwards without holding it.
func WriteSnapshot(w io.Writer, atoms []*atom.Atom, comp Compression) error {
	var header [10]byte
	copy(header[:4], snapshotMagic[:])
	header[4] = snapshotVersion
	header[5] = byte(comp)
	binary.LittleEndian.PutUint32(header[6:], uint32(len(atoms)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("xdr: write snapshot header: %w", err)
	}

	body := w
	var closeBody func() error
	switch comp {
	case CompressionNone:
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		body = lw
		closeBody = lw.Close
	case CompressionZSTD:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xdr: create compressor: %w", err)
		}
		body = zw
		closeBody = zw.Close
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, comp)
	}

	sum := hash.NewCRC32C()
	buf := make([]byte, 0, 256)
	for _, a := range atoms {
		buf = AppendAtom(buf[:0], a)
		_, _ = sum.Write(buf)
		if _, err := body.Write(buf); err != nil {
			return fmt.Errorf("xdr: write atom record: %w", err)
		}
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], sum.Sum32())
	if _, err := body.Write(trailer[:]); err != nil {
		return fmt.Errorf("xdr: write snapshot checksum: %w", err)
	}

	if closeBody != nil {
		if err := closeBody(); err != nil {
			return fmt.Errorf("xdr: flush snapshot: %w", err)
		}
	}
	return nil
}

// ReadSnapshot decodes a snapshot from r, re-interning every record through
// in. It returns the canonical atoms in stream order.
func ReadSnapshot(r io.Reader, in Interner) ([]*atom.Atom, error) {
	var header [10]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrInvalidSnapshot)
	}
	if [4]byte(header[:4]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	if header[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, header[4])
	}
	count := binary.LittleEndian.Uint32(header[6:])

	body := r
	switch Compression(header[5]) {
	case CompressionNone:
	case CompressionLZ4:
		body = lz4.NewReader(r)
	case CompressionZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xdr: create decompressor: %w", err)
		}
		defer zr.Close()
		body = zr.IOReadCloser()
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, header[5])
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("xdr: read snapshot body: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: missing checksum", ErrInvalidSnapshot)
	}
	records, trailer := data[:len(data)-4], data[len(data)-4:]
	if hash.CRC32C(records) != binary.LittleEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSnapshot)
	}
	data = records

	atoms := make([]*atom.Atom, 0, count)
	for i := uint32(0); i < count; i++ {
		var a *atom.Atom
		a, data, err = DecodeAtom(in, data)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, a)
	}
	return atoms, nil
}
