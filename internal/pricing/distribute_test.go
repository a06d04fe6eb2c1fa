package pricing_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/pricing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lines(quantities []int, prices []string) []pricing.Line {
	out := make([]pricing.Line, len(quantities))
	for i := range quantities {
		out[i] = pricing.Line{Quantity: quantities[i], StandardPrice: d(prices[i])}
	}
	return out
}

func lineTotals(allocs []pricing.Allocation) []string {
	out := make([]string, len(allocs))
	for i, a := range allocs {
		out[i] = a.LineTotal.String()
	}
	return out
}

func reconciled(t *testing.T, in []pricing.Line, allocs []pricing.Allocation, total decimal.Decimal, scale int32) {
	t.Helper()
	require.Len(t, allocs, len(in))
	sum := decimal.Zero
	for i, a := range allocs {
		sum = sum.Add(pricing.LineTotal(a.UnitPrice, in[i].Quantity, scale))
	}
	assert.True(t, sum.Equal(total), "sum of rounded line totals %s != manual total %s", sum, total)
	assert.True(t, pricing.Sum(allocs).Equal(total), "sum of line totals %s != manual total %s", pricing.Sum(allocs), total)
}

func TestDistribute_ReferenceScenario(t *testing.T) {
	for _, policy := range []pricing.RemainderPolicy{pricing.RemainderLastLine, pricing.RemainderLargest} {
		t.Run(policy.String(), func(t *testing.T) {
			in := lines([]int{2, 3, 1}, []string{"10", "10", "10"})
			allocs, err := pricing.NewDistributor(0, policy).Distribute(in, d("61"))
			require.NoError(t, err)

			assert.Equal(t, []string{"20", "31", "10"}, lineTotals(allocs))
			assert.Equal(t, "10.00", allocs[0].UnitPrice.StringFixed(2))
			assert.Equal(t, "10.33", allocs[1].UnitPrice.StringFixed(2))
			assert.Equal(t, "10.00", allocs[2].UnitPrice.StringFixed(2))
			reconciled(t, in, allocs, d("61"), 0)
		})
	}
}

func TestDistribute_SingleLine(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		total    string
		scale    int32
	}{
		{name: "divisible", quantity: 4, total: "100", scale: 0},
		{name: "not_divisible", quantity: 3, total: "100", scale: 0},
		{name: "cents", quantity: 7, total: "19.99", scale: 2},
		{name: "zero_total", quantity: 2, total: "0", scale: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []pricing.Line{{Quantity: tt.quantity, StandardPrice: d("12.5")}}
			allocs, err := pricing.NewDistributor(tt.scale, pricing.RemainderLastLine).Distribute(in, d(tt.total))
			require.NoError(t, err)
			require.Len(t, allocs, 1)

			want := d(tt.total).Div(decimal.NewFromInt(int64(tt.quantity)))
			assert.True(t, want.Equal(allocs[0].UnitPrice), "got %s want %s", allocs[0].UnitPrice, want)
			assert.True(t, d(tt.total).Equal(allocs[0].LineTotal))
		})
	}
}

func TestDistribute_ZeroStandardSumSplitsEvenly(t *testing.T) {
	in := lines([]int{1, 1, 1}, []string{"0", "0", "0"})

	allocs, err := pricing.NewDistributor(0, pricing.RemainderLastLine).Distribute(in, d("90"))
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "30", "30"}, lineTotals(allocs))

	allocs, err = pricing.NewDistributor(0, pricing.RemainderLastLine).Distribute(in, d("100"))
	require.NoError(t, err)
	assert.Equal(t, []string{"33", "33", "34"}, lineTotals(allocs))
	reconciled(t, in, allocs, d("100"), 0)

	allocs, err = pricing.NewDistributor(0, pricing.RemainderLargest).Distribute(in, d("100"))
	require.NoError(t, err)
	assert.Equal(t, []string{"34", "33", "33"}, lineTotals(allocs))
	reconciled(t, in, allocs, d("100"), 0)
}

func TestDistribute_EqualLinesGetEqualPrices(t *testing.T) {
	in := lines([]int{2, 5, 2}, []string{"15", "3", "15"})

	allocs, err := pricing.NewDistributor(2, pricing.RemainderLastLine).Distribute(in, d("50"))
	require.NoError(t, err)

	assert.True(t, allocs[0].UnitPrice.Equal(allocs[2].UnitPrice), "%s != %s", allocs[0].UnitPrice, allocs[2].UnitPrice)
	reconciled(t, in, allocs, d("50"), 2)
}

func TestDistribute_IsDeterministic(t *testing.T) {
	in := lines([]int{3, 7, 1, 4}, []string{"12.5", "3", "99", "0.75"})
	dist := pricing.NewDistributor(0, pricing.RemainderLastLine)

	first, err := dist.Distribute(in, d("777"))
	require.NoError(t, err)
	second, err := dist.Distribute(in, d("777"))
	require.NoError(t, err)

	assert.Equal(t, lineTotals(first), lineTotals(second))
}

func TestDistribute_ReconcilesRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, policy := range []pricing.RemainderPolicy{pricing.RemainderLastLine, pricing.RemainderLargest} {
		for _, scale := range []int32{0, 2} {
			dist := pricing.NewDistributor(scale, policy)
			for n := 0; n < 300; n++ {
				count := 1 + rng.Intn(8)
				in := make([]pricing.Line, count)
				for i := range in {
					in[i] = pricing.Line{
						Quantity:      1 + rng.Intn(10),
						StandardPrice: decimal.New(int64(rng.Intn(50000)), -2),
					}
				}
				total := decimal.New(int64(rng.Intn(1000000)), -scale)

				allocs, err := dist.Distribute(in, total)
				require.NoError(t, err)
				reconciled(t, in, allocs, total, scale)
			}
		}
	}
}

func TestDistribute_LargestRemainderAvoidsNegativeLines(t *testing.T) {
	in := lines([]int{1, 1, 1, 1}, []string{"5", "5", "5", "5"})

	allocs, err := pricing.NewDistributor(0, pricing.RemainderLastLine).Distribute(in, d("2"))
	require.NoError(t, err)
	// Every 0.5 share rounds up, so the last line has to go negative.
	assert.Equal(t, []string{"1", "1", "1", "-1"}, lineTotals(allocs))

	allocs, err = pricing.NewDistributor(0, pricing.RemainderLargest).Distribute(in, d("2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "0", "0"}, lineTotals(allocs))
	for _, a := range allocs {
		assert.False(t, a.LineTotal.IsNegative())
	}
}

func TestDistribute_InvalidInput(t *testing.T) {
	dist := pricing.NewDistributor(0, pricing.RemainderLastLine)

	tests := []struct {
		name  string
		lines []pricing.Line
		total string
	}{
		{name: "no_lines", lines: nil, total: "10"},
		{name: "zero_quantity", lines: lines([]int{0}, []string{"1"}), total: "10"},
		{name: "negative_price", lines: lines([]int{1}, []string{"-1"}), total: "10"},
		{name: "negative_total", lines: lines([]int{1}, []string{"1"}), total: "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dist.Distribute(tt.lines, d(tt.total))
			require.Error(t, err)
			assert.True(t, errors.Is(err, pricing.ErrInvalidInput))
		})
	}
}

func TestParseRemainderPolicy(t *testing.T) {
	p, err := pricing.ParseRemainderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, pricing.RemainderLastLine, p)

	p, err = pricing.ParseRemainderPolicy(" Largest ")
	require.NoError(t, err)
	assert.Equal(t, pricing.RemainderLargest, p)

	_, err = pricing.ParseRemainderPolicy("random")
	assert.Error(t, err)
}
