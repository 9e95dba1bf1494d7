// Package randid generates short random identifiers for batches and log files.
package randid

import "crypto/rand"

// Alphabet omits look-alike characters (0/o, 1/l/i).
const Alphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// Generate returns a random id of length characters from Alphabet.
func Generate(length int) string {
	if length <= 0 {
		return ""
	}

	// bytes at or above limit are rejected so every character is equally likely
	const limit = 256 - 256%len(Alphabet)

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}
