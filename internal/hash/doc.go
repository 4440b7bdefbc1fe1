// Package hash provides the CRC32-Castagnoli checksums recorded for every
// published output file.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	_, _ = io.Copy(h, f)
//	checksum := h.Sum32()
//
// Go's crc32 package uses hardware instructions (SSE4.2, ARM CRC) when
// available.
package hash
