package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

// Amount is a dollar amount in integer cents.
type Amount int64

// Cents builds an Amount from whole cents.
func Cents(c int64) Amount { return Amount(c) }

// Dollars renders the amount as a plain two-decimal number, e.g. "6.50".
func (a Amount) Dollars() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// String renders the amount with a dollar sign, e.g. "$6.50".
func (a Amount) String() string {
	if a < 0 {
		return "-$" + (-a).Dollars()
	}
	return "$" + a.Dollars()
}

// ParseAmount accepts "6.5", "6.50", "$6.50" or "-1". More than two fraction digits,
// exponents and values beyond the int64 cent range are rejected.
func ParseAmount(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	neg := strings.HasPrefix(raw, "-")
	digits := strings.TrimPrefix(strings.TrimPrefix(raw, "-"), "$")

	whole, frac, hasPoint := strings.Cut(digits, ".")
	if whole == "" || len(frac) > 2 || (hasPoint && frac == "") || !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := int64(0)
	if frac != "" {
		cents, _ = strconv.ParseInt(frac, 10, 64)
		if len(frac) == 1 {
			cents *= 10
		}
	}
	if units > (math.MaxInt64-cents)/100 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	total := units*100 + cents
	if neg {
		total = -total
	}
	return Amount(total), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON writes the amount as a two-decimal JSON number, e.g. 6.50.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Dollars()), nil
}

// UnmarshalJSON accepts a JSON number or a string such as "$6.50".
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
