// Package hash provides encoding-independent content hashing for atom lookup
// and the CRC32-C checksum guarding snapshot integrity.
//
// Narrow (Latin-1) and wide (UTF-16) representations of the same character
// sequence must hash identically, so every code unit is fed to the digest as
// two little-endian bytes regardless of how the caller stores it.
package hash

import (
	"github.com/cespare/xxhash/v2"
)

// scratchUnits is the number of code units widened per digest write.
const scratchUnits = 256

// Latin1 hashes narrow content, widening each byte to a 16-bit code unit.
func Latin1(units []byte) uint32 {
	d := xxhash.New()
	var buf [2 * scratchUnits]byte
	for len(units) > 0 {
		n := len(units)
		if n > scratchUnits {
			n = scratchUnits
		}
		for i := 0; i < n; i++ {
			buf[2*i] = units[i]
			buf[2*i+1] = 0
		}
		_, _ = d.Write(buf[:2*n])
		units = units[n:]
	}
	return fold(d.Sum64())
}

// UTF16 hashes wide content.
func UTF16(units []uint16) uint32 {
	d := xxhash.New()
	var buf [2 * scratchUnits]byte
	for len(units) > 0 {
		n := len(units)
		if n > scratchUnits {
			n = scratchUnits
		}
		for i := 0; i < n; i++ {
			buf[2*i] = byte(units[i])
			buf[2*i+1] = byte(units[i] >> 8)
		}
		_, _ = d.Write(buf[:2*n])
		units = units[n:]
	}
	return fold(d.Sum64())
}

func fold(h uint64) uint32 {
	return uint32(h>>32) ^ uint32(h)
}
