// Package checksum provides SHA-256 checksum utilities for artifact
// integrity. The publish pipeline uses it to verify that the archive the
// storage backend reports storing matches the bytes that were repackaged,
// and the local storage backend uses it when serving object metadata.
// Keeping the hashing in one package avoids duplicating crypto/sha256
// wiring across the pipeline and storage layers.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CalculateSHA256 calculates the SHA-256 checksum of data from a reader.
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// File calculates the SHA-256 checksum of a file on disk.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return CalculateSHA256(f)
}

// VerifySHA256 verifies that the checksum of data matches the expected
// checksum.
func VerifySHA256(reader io.Reader, expectedChecksum string) (bool, error) {
	actualChecksum, err := CalculateSHA256(reader)
	if err != nil {
		return false, err
	}

	return actualChecksum == expectedChecksum, nil
}
