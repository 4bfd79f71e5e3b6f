package dq

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Bound is an optional inclusive interval endpoint: either unbounded or
// Inclusive(value). The tagged representation keeps the unbounded case
// explicit instead of hiding it behind a nullable number.
type Bound struct {
	bounded bool
	value   decimal.Decimal
}

// Unbounded returns the absent endpoint.
func Unbounded() Bound {
	return Bound{}
}

// Inclusive returns an endpoint at the given value, included in the
// permitted interval.
func Inclusive(value decimal.Decimal) Bound {
	return Bound{bounded: true, value: value}
}

// Bounded reports whether the endpoint exists.
func (b Bound) Bounded() bool {
	return b.bounded
}

// Value returns the endpoint value; only meaningful when Bounded.
func (b Bound) Value() decimal.Decimal {
	return b.value
}

// Below reports whether v falls below this endpoint when used as a minimum.
func (b Bound) Below(v decimal.Decimal) bool {
	return b.bounded && v.LessThan(b.value)
}

// Above reports whether v falls above this endpoint when used as a maximum.
func (b Bound) Above(v decimal.Decimal) bool {
	return b.bounded && v.GreaterThan(b.value)
}

// String renders the endpoint for violation details.
func (b Bound) String() string {
	if !b.bounded {
		return "unbounded"
	}
	return b.value.String()
}

// UnmarshalYAML decodes a YAML null (or absent key) as Unbounded and a
// number as Inclusive.
func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*b = Unbounded()
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("bound must be a number or null: %w", err)
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid bound %q: %w", raw, err)
	}
	*b = Inclusive(parsed)
	return nil
}
