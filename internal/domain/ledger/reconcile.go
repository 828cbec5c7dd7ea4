// Package ledger derives a customer's received and outstanding amounts from
// the booking amount and the ordered list of installments paid against a plot.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Installment statuses that mark a payment which failed to clear.
const (
	StatusChequeBounce = "Cheque Bounce"
	StatusBounced      = "Bounced"
)

// Line is one installment as seen by the reconciliation.
type Line struct {
	ReceivedAmount decimal.Decimal
	Status         string
}

// Balance is a Line with the running balance after it has been applied.
type Balance struct {
	ReceivedAmount decimal.Decimal
	Status         string
	BalanceAmount  decimal.Decimal
}

// Result holds the derived customer totals and per-installment balances,
// in the same order as the input lines.
type Result struct {
	ReceivedAmount decimal.Decimal
	BalanceAmount  decimal.Decimal
	Installments   []Balance
}

// IsBounced reports whether an installment status excludes its amount from
// the received total. "Cheque Bounce" and "Bounced" are treated alike.
func IsBounced(status string) bool {
	s := strings.TrimSpace(status)
	return strings.EqualFold(s, StatusChequeBounce) || strings.EqualFold(s, StatusBounced)
}

// Reconcile recomputes the ledger for a customer.
//
// The running balance starts at totalAmount-bookingAmount and every
// non-bounced installment is subtracted from it in sequence. Balances are
// floored at zero, so overpayment is absorbed rather than reported as a
// negative outstanding amount. A bounced installment keeps its recorded
// amount in the output but contributes nothing to the totals.
//
// Reconcile never fails and has no side effects; callers reject negative
// input before invoking it.
func Reconcile(totalAmount, bookingAmount decimal.Decimal, lines []Line) Result {
	running := totalAmount.Sub(bookingAmount)
	received := bookingAmount

	balances := make([]Balance, len(lines))
	for i, line := range lines {
		effective := line.ReceivedAmount
		if IsBounced(line.Status) {
			effective = decimal.Zero
		}

		received = received.Add(effective)
		running = running.Sub(effective)

		balances[i] = Balance{
			ReceivedAmount: line.ReceivedAmount,
			Status:         line.Status,
			BalanceAmount:  floorZero(running),
		}
	}

	return Result{
		ReceivedAmount: received,
		BalanceAmount:  floorZero(totalAmount.Sub(received)),
		Installments:   balances,
	}
}

// CoerceAmount parses a user-entered amount, treating empty or non-numeric
// input as zero.
func CoerceAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
