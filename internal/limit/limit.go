// Package limit evaluates per-account daily debit limits.
package limit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Headroom returns how much more the account may debit today. limited is false
// when the account has no daily limit, in which case headroom is meaningless.
func Headroom(limit decimal.NullDecimal, todayDebits decimal.Decimal) (headroom decimal.Decimal, limited bool) {
	if !limit.Valid {
		return decimal.Zero, false
	}
	headroom = limit.Decimal.Sub(todayDebits)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	return headroom, true
}

// Allows reports whether debiting amount keeps today's total within limit.
func Allows(limit decimal.NullDecimal, todayDebits, amount decimal.Decimal) bool {
	if !limit.Valid {
		return true
	}
	return todayDebits.Add(amount).LessThanOrEqual(limit.Decimal)
}

// DayWindow returns the calendar day containing now in loc as [from, to).
func DayWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1)
	return from, to
}
