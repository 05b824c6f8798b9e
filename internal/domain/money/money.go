package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"billiard-hall/internal/pkg/errs"
)

var ErrInvalidAmount = errs.Define(errs.KindValidation, "InvalidAmount", "invalid money amount")

// Money is an amount in cents of the hall's single currency.
type Money struct {
	cents int64
}

func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// Parse reads a decimal amount such as "50", "50.5" or "50.00". Only a
// leading "-" is accepted as a sign.
func Parse(s string) (Money, error) {
	raw := s
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, hasFrac := strings.Cut(s, ".")
	if !isDigits(whole) || (hasFrac && (!isDigits(frac) || len(frac) > 2)) {
		return Money{}, errs.Wrapf(ErrInvalidAmount, "parse %q", raw)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units >= math.MaxInt64/100 {
		return Money{}, errs.Wrapf(ErrInvalidAmount, "parse %q: out of range", raw)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money{cents: total}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (m Money) Cents() int64 { return m.cents }

func (m Money) IsPositive() bool { return m.cents > 0 }

func (m Money) IsZero() bool { return m.cents == 0 }

func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) String() string {
	sign := ""
	c := m.cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// ForDuration charges an hourly rate for d, billing every started minute,
// rounded half-up to the cent.
func ForDuration(hourlyRate Money, d time.Duration) Money {
	if d <= 0 {
		return Money{}
	}
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return Money{cents: (hourlyRate.cents*minutes + 30) / 60}
}
