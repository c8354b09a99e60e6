// utils/compress.go
package utils

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecompressReplay turns a raw replay artifact into markup text. The scheme is
// inferred from the filename suffix: ".bz2" is bzip2, ".gz" (including
// ".rpy.gz") is gzip, anything else is read as-is. The server occasionally
// emits latin-1 content, so bytes that are not valid UTF-8 get re-decoded
// instead of being rejected.
func DecompressReplay(filename string, data []byte) (string, error) {
	lower := strings.ToLower(filename)

	var (
		decompressed []byte
		err          error
	)
	switch {
	case strings.HasSuffix(lower, ".bz2"):
		decompressed, err = io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
		if err != nil {
			return "", fmt.Errorf("bzip2 decompression failed for %s: %w", filename, err)
		}
	case strings.HasSuffix(lower, ".gz"):
		var zr *gzip.Reader
		zr, err = gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("gzip decompression failed for %s: %w", filename, err)
		}
		decompressed, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return "", fmt.Errorf("gzip decompression failed for %s: %w", filename, err)
		}
	default:
		// uncompressed or unknown suffix, take the bytes as they are
		decompressed = data
	}

	if utf8.Valid(decompressed) {
		return string(decompressed), nil
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(decompressed)
	if err != nil {
		return "", fmt.Errorf("replay %s is neither UTF-8 nor latin-1: %w", filename, err)
	}
	return string(text), nil
}
