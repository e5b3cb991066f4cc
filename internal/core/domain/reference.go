package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"time"
)

const (
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength   = 6
	referenceCutoff   = 256 - 256%len(referenceAlphabet)
)

var referencePattern = regexp.MustCompile(`^MA-\d{6}-[A-Z0-9]{6}$`)

// NewReference builds a human readable booking reference of the form
// MA-YYYYMM-XXXXXX. Uniqueness is enforced by storage.
func NewReference(now time.Time, r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	suffix := make([]byte, 0, referenceLength)
	buf := make([]byte, referenceLength)
	for len(suffix) < referenceLength {
		if _, err := io.ReadFull(r, buf[:referenceLength-len(suffix)]); err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		for _, b := range buf[:referenceLength-len(suffix)] {
			// Bytes past the last whole multiple of the alphabet size would
			// favour its first characters.
			if int(b) >= referenceCutoff {
				continue
			}
			suffix = append(suffix, referenceAlphabet[int(b)%len(referenceAlphabet)])
		}
	}

	return fmt.Sprintf("MA-%s-%s", now.UTC().Format("200601"), suffix), nil
}

func ValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}
