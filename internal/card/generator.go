package card

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mivanov-dev/bank-cards/internal/domain"
)

// NumberGenerator derives card numbers from account sequence numbers:
// issuer BIN + zero-padded 9-digit sequence + Luhn check digit. The same
// sequence always yields the same number, so uniqueness of the sequence
// source is what makes numbers unique.
type NumberGenerator struct {
	bin string
}

func NewNumberGenerator(bin string) (*NumberGenerator, error) {
	if bin == "" || !allDigits(bin) {
		return nil, fmt.Errorf("NewNumberGenerator: BIN must be numeric, got %q", bin)
	}
	return &NumberGenerator{bin: bin}, nil
}

func (g *NumberGenerator) Generate(accountSeq int64) (string, error) {
	if accountSeq <= 0 {
		return "", fmt.Errorf("Generate: account seq must be positive: %w", domain.ErrInvalidCardNumber)
	}
	partial := g.bin + fmt.Sprintf("%09d", accountSeq)
	return partial + string(rune('0'+checkDigit(partial))), nil
}

// checkDigit computes the Luhn check digit for the partial number: digits at
// an even distance from the (appended) check position are doubled, doubled
// values above 9 have 9 subtracted, and the digit brings the total to a
// multiple of 10.
func checkDigit(partial string) int {
	sum := 0
	for i, r := range partial {
		d := int(r - '0')
		if (len(partial)-i)%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// Valid reports whether the full number satisfies the Luhn relation.
func Valid(number string) bool {
	number = Normalize(number)
	if len(number) < 2 || !allDigits(number) {
		return false
	}
	return checkDigit(number[:len(number)-1]) == int(number[len(number)-1]-'0')
}

// Normalize strips all whitespace from a user-supplied number.
func Normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

// Last4 returns the trailing four digits of a normalized number.
func Last4(number string) string {
	number = Normalize(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
