// Package checksum computes the deterministic digest used to detect drift
// between a resolved migration's content and what was recorded in the
// ledger at apply time (spec §4.5).
package checksum

import (
	"bytes"
	"hash/crc32"
	"strings"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Of returns the signed 32-bit checksum of content after canonicalization:
// a leading UTF-8 BOM is stripped and line endings are normalized to "\n".
// The algorithm (IEEE CRC-32, reinterpreted as int32) is an implementation
// detail; callers must not assume a specific polynomial, only that the
// result is stable across runs and platforms for identical input.
func Of(content []byte) int32 {
	canon := Canonicalize(content)
	sum := crc32.ChecksumIEEE(canon)
	return int32(sum)
}

// OfString is a convenience wrapper over Of for already-decoded text.
func OfString(content string) int32 {
	return Of([]byte(content))
}

// Canonicalize strips a leading BOM and normalizes CRLF/CR line endings to
// LF. It is exported so callers that need the canonical bytes for other
// purposes (e.g. display) do not have to duplicate the rule.
func Canonicalize(content []byte) []byte {
	b := bytes.TrimPrefix(content, bom)
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
