package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertAmount(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), "expected %d, got %s", expected, actual.String())
}

func TestReconcile_Scenarios(t *testing.T) {
	t.Run("NoInstallments", func(t *testing.T) {
		res := Reconcile(d(100000), d(20000), nil)

		assertAmount(t, 20000, res.ReceivedAmount)
		assertAmount(t, 80000, res.BalanceAmount)
		assert.Empty(t, res.Installments)
	})

	t.Run("TwoPaidInstallments", func(t *testing.T) {
		res := Reconcile(d(100000), d(20000), []Line{
			{ReceivedAmount: d(30000), Status: "Paid"},
			{ReceivedAmount: d(20000), Status: "Paid"},
		})

		assertAmount(t, 70000, res.ReceivedAmount)
		assertAmount(t, 30000, res.BalanceAmount)
		require.Len(t, res.Installments, 2)
		assertAmount(t, 50000, res.Installments[0].BalanceAmount)
		assertAmount(t, 30000, res.Installments[1].BalanceAmount)
	})

	t.Run("ChequeBounceExcluded", func(t *testing.T) {
		res := Reconcile(d(100000), d(20000), []Line{
			{ReceivedAmount: d(30000), Status: "Paid"},
			{ReceivedAmount: d(50000), Status: "Cheque Bounce"},
		})

		assertAmount(t, 50000, res.ReceivedAmount)
		assertAmount(t, 50000, res.BalanceAmount)
		require.Len(t, res.Installments, 2)
		assertAmount(t, 50000, res.Installments[1].ReceivedAmount) // kept for display
		assertAmount(t, 50000, res.Installments[1].BalanceAmount)
		assert.Equal(t, "Cheque Bounce", res.Installments[1].Status)
	})

	t.Run("OverpaymentClampedAtZero", func(t *testing.T) {
		res := Reconcile(d(50000), d(60000), nil)

		assertAmount(t, 60000, res.ReceivedAmount)
		assertAmount(t, 0, res.BalanceAmount)
		assert.False(t, res.BalanceAmount.IsNegative())
	})

	t.Run("InstallmentBalanceClampedAtZero", func(t *testing.T) {
		res := Reconcile(d(100000), d(20000), []Line{
			{ReceivedAmount: d(90000), Status: "Paid"},
			{ReceivedAmount: d(5000), Status: "Paid"},
		})

		assertAmount(t, 115000, res.ReceivedAmount)
		assertAmount(t, 0, res.BalanceAmount)
		assertAmount(t, 0, res.Installments[0].BalanceAmount)
		assertAmount(t, 0, res.Installments[1].BalanceAmount)
	})

	t.Run("FractionalAmounts", func(t *testing.T) {
		res := Reconcile(decimal.RequireFromString("1000.50"), decimal.RequireFromString("0.25"), []Line{
			{ReceivedAmount: decimal.RequireFromString("100.10"), Status: "Paid"},
		})

		assert.Equal(t, "100.35", res.ReceivedAmount.String())
		assert.Equal(t, "900.15", res.BalanceAmount.String())
	})
}

func TestReconcile_BouncedSynonyms(t *testing.T) {
	testCases := []struct {
		name   string
		status string
		counts bool
	}{
		{"ChequeBounce", "Cheque Bounce", false},
		{"Bounced", "Bounced", false},
		{"LowerCase", "cheque bounce", false},
		{"Padded", "  Bounced ", false},
		{"Paid", "Paid", true},
		{"Pending", "Pending", true},
		{"Partial", "Partial", true},
		{"Empty", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Reconcile(d(100000), d(10000), []Line{{ReceivedAmount: d(25000), Status: tc.status}})
			if tc.counts {
				assertAmount(t, 35000, res.ReceivedAmount)
			} else {
				assertAmount(t, 10000, res.ReceivedAmount)
			}
			assert.Equal(t, !tc.counts, IsBounced(tc.status))
		})
	}
}

func randomLines(r *rand.Rand, n int, allowBounce bool) []Line {
	statuses := []string{"Paid", "Pending", "Partial"}
	if allowBounce {
		statuses = append(statuses, "Cheque Bounce", "Bounced")
	}
	lines := make([]Line, n)
	for i := range lines {
		lines[i] = Line{
			ReceivedAmount: d(r.Int63n(50000)),
			Status:         statuses[r.Intn(len(statuses))],
		}
	}
	return lines
}

func TestReconcile_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	t.Run("ReceivedIsBookingPlusSumWithoutBounces", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			total, booking := d(r.Int63n(500000)), d(r.Int63n(200000))
			lines := randomLines(r, r.Intn(8), false)

			sum := booking
			for _, l := range lines {
				sum = sum.Add(l.ReceivedAmount)
			}

			res := Reconcile(total, booking, lines)
			assert.True(t, sum.Equal(res.ReceivedAmount), "iteration %d", i)
		}
	})

	t.Run("BalanceNeverNegative", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			total, booking := d(r.Int63n(500000)), d(r.Int63n(500000))
			res := Reconcile(total, booking, randomLines(r, r.Intn(8), true))

			expected := total.Sub(res.ReceivedAmount)
			if expected.IsNegative() {
				expected = decimal.Zero
			}
			assert.True(t, expected.Equal(res.BalanceAmount), "iteration %d", i)
			for _, inst := range res.Installments {
				assert.False(t, inst.BalanceAmount.IsNegative())
			}
		}
	})

	t.Run("IdempotentOnOwnOutput", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			total, booking := d(r.Int63n(500000)), d(r.Int63n(200000))
			first := Reconcile(total, booking, randomLines(r, r.Intn(8), true))

			again := make([]Line, len(first.Installments))
			for j, inst := range first.Installments {
				again[j] = Line{ReceivedAmount: inst.ReceivedAmount, Status: inst.Status}
			}
			second := Reconcile(total, booking, again)

			assert.True(t, first.ReceivedAmount.Equal(second.ReceivedAmount))
			assert.True(t, first.BalanceAmount.Equal(second.BalanceAmount))
			require.Len(t, second.Installments, len(first.Installments))
			for j := range first.Installments {
				assert.True(t, first.Installments[j].BalanceAmount.Equal(second.Installments[j].BalanceAmount))
			}
		}
	})

	t.Run("BouncingAnyInstallmentRemovesItsAmount", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			lines := randomLines(r, 1+r.Intn(6), false)
			before := Reconcile(d(1000000), d(10000), lines)

			idx := r.Intn(len(lines))
			bounced := append([]Line(nil), lines...)
			bounced[idx].Status = StatusChequeBounce
			after := Reconcile(d(1000000), d(10000), bounced)

			assert.True(t, before.ReceivedAmount.Sub(lines[idx].ReceivedAmount).Equal(after.ReceivedAmount))
			assert.True(t, lines[idx].ReceivedAmount.Equal(after.Installments[idx].ReceivedAmount))
		}
	})
}

func TestReconcile_OrderSensitivity(t *testing.T) {
	lines := []Line{
		{ReceivedAmount: d(10000), Status: "Paid"},
		{ReceivedAmount: d(40000), Status: "Paid"},
	}
	reversed := []Line{lines[1], lines[0]}

	a := Reconcile(d(100000), d(0), lines)
	b := Reconcile(d(100000), d(0), reversed)

	assert.True(t, a.ReceivedAmount.Equal(b.ReceivedAmount), "aggregate does not depend on order")
	assertAmount(t, 90000, a.Installments[0].BalanceAmount)
	assertAmount(t, 60000, b.Installments[0].BalanceAmount)
}

func TestCoerceAmount(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"12500", "12500"},
		{" 12500.75 ", "12500.75"},
		{"1,20,000", "120000"},
		{"-50", "-50"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, CoerceAmount(tc.raw).String())
		})
	}
}
