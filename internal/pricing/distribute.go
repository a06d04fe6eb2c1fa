// Package pricing spreads a manually set total over order lines.
//
// A template (combo) can carry one overridden price for the whole set of drugs.
// When such an order is committed, the total has to be pushed back down to
// per-line unit prices. Every line gets a share proportional to its standard
// value (standard unit price * quantity). Line totals are rounded to the
// currency's smallest unit and the rounding error is absorbed by a remainder
// policy, so the line totals always add up to the manual total exactly.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid pricing input")

// RemainderPolicy decides which lines absorb the rounding remainder.
type RemainderPolicy string

const (
	// RemainderLastLine rounds every line except the last one, which receives
	// whatever is left. Which line absorbs the remainder is a policy choice,
	// not a mathematical necessity.
	RemainderLastLine RemainderPolicy = "last"
	// RemainderLargest floors every share and hands the leftover smallest
	// units to the lines with the largest fractional parts.
	RemainderLargest RemainderPolicy = "largest"
)

func (p RemainderPolicy) String() string {
	return string(p)
}

func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RemainderLastLine:
		return RemainderLastLine, nil
	case RemainderLargest:
		return RemainderLargest, nil
	default:
		return "", fmt.Errorf("unknown remainder policy %q", s)
	}
}

// Line is one order line taking part in a distribution.
type Line struct {
	Quantity      int
	StandardPrice decimal.Decimal
}

// Weight is the line's contribution to the standard total.
func (l Line) Weight() decimal.Decimal {
	return l.StandardPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Allocation is the result for one line, in input order.
type Allocation struct {
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Distributor is stateless and safe for concurrent use.
type Distributor struct {
	scale  int32
	policy RemainderPolicy
}

// NewDistributor returns a distributor rounding to scale decimal places
// (0 for currencies without minor units, 2 for cents).
func NewDistributor(scale int32, policy RemainderPolicy) *Distributor {
	if policy == "" {
		policy = RemainderLastLine
	}
	return &Distributor{scale: scale, policy: policy}
}

func (d *Distributor) Scale() int32 {
	return d.scale
}

func (d *Distributor) Policy() RemainderPolicy {
	return d.policy
}

// Distribute allocates manualTotal over lines. The returned line totals sum
// to manualTotal exactly. When every standard price is zero the total is
// split evenly. Unusual totals (far below standard cost, say) are accepted
// as is.
func (d *Distributor) Distribute(lines []Line, manualTotal decimal.Decimal) ([]Allocation, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no lines to distribute", ErrInvalidInput)
	}
	if manualTotal.IsNegative() {
		return nil, fmt.Errorf("%w: manual total %s is negative", ErrInvalidInput, manualTotal)
	}

	standardSum := decimal.Zero
	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d has quantity %d", ErrInvalidInput, i, line.Quantity)
		}
		if line.StandardPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d has negative standard price %s", ErrInvalidInput, i, line.StandardPrice)
		}
		standardSum = standardSum.Add(line.Weight())
	}

	shares := rawShares(lines, standardSum, manualTotal)

	var totals []decimal.Decimal
	switch d.policy {
	case RemainderLargest:
		totals = d.largestRemainder(shares, manualTotal)
	default:
		totals = d.lastLine(shares, manualTotal)
	}

	allocations := make([]Allocation, len(lines))
	for i, line := range lines {
		allocations[i] = Allocation{
			UnitPrice: totals[i].Div(decimal.NewFromInt(int64(line.Quantity))),
			LineTotal: totals[i],
		}
	}
	return allocations, nil
}

// rawShares multiplies before dividing to keep the precision of the quotient.
func rawShares(lines []Line, standardSum, manualTotal decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	if standardSum.IsZero() {
		even := manualTotal.Div(decimal.NewFromInt(int64(len(lines))))
		for i := range shares {
			shares[i] = even
		}
		return shares
	}
	for i, line := range lines {
		shares[i] = line.Weight().Mul(manualTotal).Div(standardSum)
	}
	return shares
}

func (d *Distributor) lastLine(shares []decimal.Decimal, manualTotal decimal.Decimal) []decimal.Decimal {
	last := len(shares) - 1
	totals := make([]decimal.Decimal, len(shares))
	allocated := decimal.Zero
	for i := 0; i < last; i++ {
		totals[i] = shares[i].Round(d.scale)
		allocated = allocated.Add(totals[i])
	}
	totals[last] = manualTotal.Sub(allocated)
	return totals
}

func (d *Distributor) largestRemainder(shares []decimal.Decimal, manualTotal decimal.Decimal) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(shares))
	fractions := make([]decimal.Decimal, len(shares))
	allocated := decimal.Zero
	for i, share := range shares {
		totals[i] = share.RoundFloor(d.scale)
		fractions[i] = share.Sub(totals[i])
		allocated = allocated.Add(totals[i])
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]].GreaterThan(fractions[order[b]])
	})

	unit := decimal.New(1, -d.scale)
	remaining := manualTotal.Sub(allocated)
	for k := 0; remaining.GreaterThanOrEqual(unit); k++ {
		idx := order[k%len(order)]
		totals[idx] = totals[idx].Add(unit)
		remaining = remaining.Sub(unit)
	}
	// Whatever is below one unit (a total finer than the scale, or division
	// noise) still has to land somewhere to keep the sum exact.
	if !remaining.IsZero() {
		totals[order[0]] = totals[order[0]].Add(remaining)
	}
	return totals
}

// LineTotal is unitPrice * quantity rounded to the currency scale.
func LineTotal(unitPrice decimal.Decimal, quantity int, scale int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(scale)
}

// Sum adds up allocated line totals.
func Sum(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.LineTotal)
	}
	return total
}
