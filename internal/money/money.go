package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary value stored in centavos.
type Amount = int64

// ParseDecimal converts a decimal string such as "450.00" into centavos.
// Values with more than two fractional digits are rounded half up, matching
// how the backend stores its price columns.
func ParseDecimal(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// FormatDecimal renders centavos as a two-decimal string ("450.00").
func FormatDecimal(a Amount) string {
	return decimal.New(a, -2).StringFixed(2)
}

// Value is the JSON boundary representation of an Amount. The backend
// serialises money as decimal strings but historically also emitted raw
// numbers, so both are accepted on decode. Encoding always produces a
// two-decimal string.
type Value struct {
	Amount Amount
}

// V wraps an Amount for use in request/response payloads.
func V(a Amount) Value {
	return Value{Amount: a}
}

// String renders the value as its canonical two-decimal form.
func (v Value) String() string {
	return FormatDecimal(v.Amount)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatDecimal(v.Amount))
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.Amount = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		amount, perr := ParseDecimal(s)
		if perr != nil {
			return perr
		}
		v.Amount = amount
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("parse amount %s: %w", data, err)
	}
	v.Amount = d.Shift(2).Round(0).IntPart()
	return nil
}
