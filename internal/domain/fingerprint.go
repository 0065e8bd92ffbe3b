package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const fingerprintDescriptionRunes = 1000

// Fingerprint digests the identifying fields of an item. Only the first 1000 runes
// of the description take part so trailing churn does not count as a change.
func Fingerprint(title, url, description string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("||")
	b.WriteString(url)
	b.WriteString("||")
	b.WriteString(TruncateRunes(description, fingerprintDescriptionRunes))

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
