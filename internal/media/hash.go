package media

import (
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"image"
	"strings"

	"github.com/corona10/goimagehash"
)

// UnknownFingerprint is stored as perceptual or difference hash when the
// content could not be decoded.
const UnknownFingerprint = "0000000000000000"

// IsUnknownFingerprint reports whether h carries no usable fingerprint.
func IsUnknownFingerprint(h string) bool {
	return h == "" || strings.Trim(h, "0") == ""
}

// CalculateHash returns the hex encoded SHA-512 of data (128 characters).
func CalculateHash(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// CalculateMD5Hash returns the hex encoded MD5 of data. It is a cheap
// pre-filter only, never a duplicate criterion on its own.
func CalculateMD5Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// CalculatePHash returns the 64-bit perceptual hash of img as 16 hex
// characters, or UnknownFingerprint.
func CalculatePHash(img image.Image) string {
	if img == nil {
		return UnknownFingerprint
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return UnknownFingerprint
	}
	return fmt.Sprintf("%016x", h.GetHash())
}

// CalculateDHash returns the 64-bit difference hash of img as 16 hex
// characters, or UnknownFingerprint.
func CalculateDHash(img image.Image) string {
	if img == nil {
		return UnknownFingerprint
	}
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return UnknownFingerprint
	}
	return fmt.Sprintf("%016x", h.GetHash())
}

// HammingDistance counts the positions at which two equal-length hex hashes
// differ.
func HammingDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d and %d", ErrHashLengthMismatch, len(a), len(b))
	}
	d := 0
	for i := 0; i < len(a); i++ {
		if !strings.EqualFold(a[i:i+1], b[i:i+1]) {
			d++
		}
	}
	return d, nil
}
