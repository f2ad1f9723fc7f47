// Package integrity provides content hashing and descriptor checksums for snapshots.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/remedy-project/remedy/pkg/jsonutil"
	"github.com/remedy-project/remedy/pkg/model"
)

// HashBytes returns the hex-encoded SHA-256 of content.
func HashBytes(content []byte) model.HashValue {
	sum := sha256.Sum256(content)
	return model.HashValue(hex.EncodeToString(sum[:]))
}

// HashFile returns the hex-encoded SHA-256 of a file's content, streaming.
func HashFile(path string) (model.HashValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return model.HashValue(hex.EncodeToString(h.Sum(nil))), nil
}

// PathKey derives the payload file name for a snapshot-scoped path: the
// SHA-256 of the normalized relative path. Keeps payload names filesystem
// safe regardless of the original path.
func PathKey(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])
}

// ComputeDescriptorChecksum computes the SHA-256 checksum of a descriptor
// over its canonical JSON form, excluding the checksum field itself.
func ComputeDescriptorChecksum(desc *model.Descriptor) (model.HashValue, error) {
	clone := *desc
	clone.DescriptorChecksum = ""

	sum, err := jsonutil.CanonicalSHA256(&clone)
	if err != nil {
		return "", fmt.Errorf("checksum descriptor: %w", err)
	}
	return model.HashValue(sum), nil
}

// VerifyDescriptorChecksum recomputes and compares a descriptor's checksum.
func VerifyDescriptorChecksum(desc *model.Descriptor) (bool, error) {
	computed, err := ComputeDescriptorChecksum(desc)
	if err != nil {
		return false, err
	}
	return computed == desc.DescriptorChecksum, nil
}
