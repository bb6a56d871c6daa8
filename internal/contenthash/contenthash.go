// Package contenthash computes the checksum used to detect "no real change"
// on page bodies and file payloads. It is a fast non-cryptographic digest;
// collisions only cost a skipped no-op detection, never data loss.
package contenthash

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Sum returns the checksum of a binary payload.
func Sum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// SumString returns the checksum of a text payload.
func SumString(s string) uint32 {
	return crc32.Checksum([]byte(s), table)
}
