// Package cpf validates and formats Brazilian taxpayer IDs (CPF).
package cpf

import (
	"math/rand"
	"strings"
)

// Sanitize strips every non-digit character.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether s, with or without punctuation, is an 11-digit CPF
// whose two check digits match. Sequences of one repeated digit are rejected.
func IsValid(s string) bool {
	d := Sanitize(s)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

// checkDigit computes the verifier that follows prefix.
func checkDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte('0' + r)
}

// Format renders a CPF as 000.000.000-00. Inputs that do not hold exactly 11
// digits are returned unchanged.
func Format(s string) string {
	d := Sanitize(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// Generate returns a random valid CPF, digits only.
func Generate(r *rand.Rand) string {
	for {
		b := make([]byte, 9, 11)
		for i := range b {
			b[i] = byte('0' + r.Intn(10))
		}
		b = append(b, checkDigit(string(b)))
		b = append(b, checkDigit(string(b)))
		if d := string(b); IsValid(d) {
			return d
		}
	}
}
