package hash

import (
	"hash"
	"hash/crc32"
)

// Snapshot integrity uses CRC32-Castagnoli: hardware accelerated on amd64
// and arm64, and a stronger error detector than CRC32-IEEE.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
