// Package codes mints the short human-readable codes used across the
// platform: per-batch verification codes staff read back at settlement,
// and the QR tokens printed on table tents.
package codes

import (
	"crypto/rand"
	"math/big"
)

// Alphabet excludes characters that read ambiguously on a kitchen
// ticket or a phone screen: 0/O, 1/I/L.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// VerificationCodeLength is the length of a settlement code.
const VerificationCodeLength = 6

// QRTokenLength is the length of a table's scan token.
const QRTokenLength = 10

// Generator produces codes over a fixed alphabet. Inject a deterministic
// Generator in tests to pin down formats without mocking whole flows.
type Generator interface {
	Generate(length int) string
}

type randomGenerator struct{}

// NewGenerator returns a crypto/rand backed Generator.
func NewGenerator() Generator {
	return randomGenerator{}
}

func (randomGenerator) Generate(length int) string {
	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to the first symbol rather than panic mid-order.
			out[i] = Alphabet[0]
			continue
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out)
}

// VerificationCode mints one shared settlement code for a batch.
func VerificationCode(g Generator) string {
	return g.Generate(VerificationCodeLength)
}

// QRToken mints a table scan token.
func QRToken(g Generator) string {
	return g.Generate(QRTokenLength)
}
