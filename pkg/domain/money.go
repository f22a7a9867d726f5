package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	dErrors "dunning/pkg/domain-errors"
)

// Cents is a currency amount in minor units.
type Cents int64

// ParseCents parses "1234.5", "$1,234.56" or "-12" into cents. More than two
// fractional digits are rejected rather than rounded.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, dErrors.New(dErrors.CodeValidation, "amount has more than two decimal places")
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "invalid amount")
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "invalid amount")
	}
	c := Cents(w*100 + f)
	if neg {
		c = -c
	}
	return c, nil
}

// CentsFromFloat rounds a float amount (as read from spreadsheets) to cents.
func CentsFromFloat(f float64) Cents {
	return Cents(math.Round(f * 100))
}

// String renders the amount as "1234.56".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalText renders the decimal form so JSON carries "1234.56".
func (c Cents) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cents) UnmarshalText(b []byte) error {
	v, err := ParseCents(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
