// Package basket holds the checkout basket of one pharmacist.
//
// A basket is a plain value: callers own it, mutate it through its methods
// and persist it with an explicit Repository.Save after each change.
package basket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLine     = errors.New("invalid basket line")
	ErrIndexOutOfRange = errors.New("basket line index out of range")
	ErrEmpty           = errors.New("basket is empty")
)

// State is the content of a checkout basket. TemplateID records that
// checkout was started from a template.
type State struct {
	Lines      []Line
	CustomerID *uuid.UUID
	TemplateID *uuid.UUID
}

func New() *State {
	return &State{Lines: []Line{}}
}

func (s *State) Len() int {
	return len(s.Lines)
}

func (s *State) IsEmpty() bool {
	return len(s.Lines) == 0
}

// AddItem merges line into an equivalent line (same kind, same drug or
// template, same price) by adding its quantity, or appends it. Lines that
// differ only in price stay separate.
func (s *State) AddItem(line Line) error {
	if line == nil {
		return fmt.Errorf("%w: nil line", ErrInvalidLine)
	}
	if err := line.validate(); err != nil {
		return err
	}

	for _, existing := range s.Lines {
		if equivalent(existing, line) {
			existing.amount().Quantity += Quantity(line)
			return nil
		}
	}

	s.Lines = append(s.Lines, line)
	return nil
}

func (s *State) RemoveItem(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.Lines = append(s.Lines[:index], s.Lines[index+1:]...)
	return nil
}

// UpdateQuantity adds delta to the line's quantity. The result never drops
// below 1; RemoveItem is the only way to take a line out.
func (s *State) UpdateQuantity(index, delta int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	a := s.Lines[index].amount()
	a.Quantity = max(a.Quantity+delta, 1)
	return nil
}

// UpdateLinePrice overrides the per-unit price of one line. A negative price
// is rejected and the basket is left untouched.
func (s *State) UpdateLinePrice(index int, price decimal.Decimal) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative, got %s", ErrInvalidLine, price)
	}
	s.Lines[index].amount().Price = price
	return nil
}

// Total is the sum of price * quantity over all lines.
func (s *State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(Subtotal(line))
	}
	return total
}

func (s *State) checkIndex(index int) error {
	if index < 0 || index >= len(s.Lines) {
		return fmt.Errorf("%w: %d (basket has %d lines)", ErrIndexOutOfRange, index, len(s.Lines))
	}
	return nil
}

type stateJSON struct {
	Lines      []json.RawMessage `json:"lines"`
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	TemplateID *uuid.UUID        `json:"template_id,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Lines:      make([]json.RawMessage, 0, len(s.Lines)),
		CustomerID: s.CustomerID,
		TemplateID: s.TemplateID,
	}
	for _, line := range s.Lines {
		raw, err := MarshalLine(line)
		if err != nil {
			return nil, err
		}
		out.Lines = append(out.Lines, raw)
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	lines := make([]Line, 0, len(in.Lines))
	for i, raw := range in.Lines {
		line, err := UnmarshalLine(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		lines = append(lines, line)
	}

	s.Lines = lines
	s.CustomerID = in.CustomerID
	s.TemplateID = in.TemplateID
	return nil
}
