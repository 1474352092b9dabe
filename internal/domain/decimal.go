package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is a wrapper around apd.Decimal to provide easy database serialization
// and clean arithmetic methods for the domain layer.
type Decimal struct {
	apd.Decimal
}

// DefaultContext is used for arithmetic operations.
var DefaultContext = apd.BaseContext.WithPrecision(20)

// Zero constant for convenience
var Zero = NewDecimalFromInt(0)

// NewDecimalFromInt creates a Decimal from an int64
func NewDecimalFromInt(v int64) Decimal {
	d := Decimal{}
	d.SetInt64(v)
	return d
}

// NewDecimalFromString creates a Decimal from a string. NaN and Infinity are rejected
// and negative zero is read as zero.
func NewDecimalFromString(v string) (Decimal, error) {
	d := Decimal{}
	if err := d.parse(v); err != nil {
		return d, fmt.Errorf("invalid decimal string %s: %w", v, err)
	}
	return d, nil
}

func (d *Decimal) parse(v string) error {
	if _, _, err := d.SetString(v); err != nil {
		return err
	}
	if !d.IsFinite() {
		return fmt.Errorf("%s is not a finite number", v)
	}
	d.clearNegativeZero()
	return nil
}

// clearNegativeZero turns -0 into 0 so that zero has a single representation.
func (d *Decimal) clearNegativeZero() {
	if d.Form == apd.Finite && d.Decimal.IsZero() {
		d.Negative = false
	}
}

// NewDecimalFromFloat creates a Decimal from a float64.
func NewDecimalFromFloat(v float64) (Decimal, error) {
	d := Decimal{}
	if _, err := d.SetFloat64(v); err != nil {
		return d, fmt.Errorf("invalid decimal float %v: %w", v, err)
	}
	return d, nil
}

// String implements the fmt.Stringer interface.
func (d Decimal) String() string {
	return d.Decimal.String()
}

// Float64 returns the closest float64 to d. Used for statistics only, never for money.
func (d Decimal) Float64() float64 {
	f, _ := d.Decimal.Float64()
	return f
}

// Value implements the driver.Valuer interface for database serialization.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (d *Decimal) Scan(value interface{}) error {
	if value == nil {
		d.SetInt64(0)
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	case int64:
		d.SetInt64(v)
		return nil
	case float64:
		_, err := d.SetFloat64(v)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported type for Decimal scan: %T", value)
	}
}

// Arithmetic Helpers

func (d Decimal) Add(other Decimal) (Decimal, error) {
	res := Decimal{}
	if _, err := DefaultContext.Add(&res.Decimal, &d.Decimal, &other.Decimal); err != nil {
		return res, fmt.Errorf("add operation failed: %w", err)
	}
	return res, nil
}

func (d Decimal) Sub(other Decimal) (Decimal, error) {
	res := Decimal{}
	if _, err := DefaultContext.Sub(&res.Decimal, &d.Decimal, &other.Decimal); err != nil {
		return res, fmt.Errorf("sub operation failed: %w", err)
	}
	return res, nil
}

func (d Decimal) Mul(other Decimal) (Decimal, error) {
	res := Decimal{}
	if _, err := DefaultContext.Mul(&res.Decimal, &d.Decimal, &other.Decimal); err != nil {
		return res, fmt.Errorf("mul operation failed: %w", err)
	}
	return res, nil
}

// MulInt multiplies d by an integer quantity.
func (d Decimal) MulInt(n int64) (Decimal, error) {
	return d.Mul(NewDecimalFromInt(n))
}

func (d Decimal) IsZero() bool {
	return d.Decimal.IsZero()
}

// IsNegative reports whether d is strictly below zero.
func (d Decimal) IsNegative() bool {
	return d.Decimal.Sign() < 0
}

// IsFinite reports whether d is a number, as opposed to NaN or an infinity.
func (d Decimal) IsFinite() bool {
	return d.Form == apd.Finite
}

// IsAmount reports whether d can stand for a price or a capital: finite and not below zero.
func (d Decimal) IsAmount() bool {
	return d.IsFinite() && !d.IsNegative()
}

// Canonical returns d with negative zero replaced by zero.
func (d Decimal) Canonical() Decimal {
	res := Decimal{}
	res.Set(&d.Decimal)
	res.clearNegativeZero()
	return res
}

func (d Decimal) Equal(other Decimal) bool {
	return d.Decimal.Cmp(&other.Decimal) == 0
}

func (d Decimal) Cmp(other Decimal) int {
	return d.Decimal.Cmp(&other.Decimal)
}

// MarshalJSON implements the json.Marshaler interface.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	// Remove quotes if present
	s := string(data)
	if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return d.parse(s)
}

// Round rounds the decimal half-up to the specified number of places.
func (d Decimal) Round(places int32) (Decimal, error) {
	res := Decimal{}
	ctx := apd.BaseContext.WithPrecision(20)
	ctx.Rounding = apd.RoundHalfUp

	// Quantize uses the exponent of its argument, so 10^-places defines the scale.
	if _, err := ctx.Quantize(&res.Decimal, &d.Decimal, -places); err != nil {
		return res, fmt.Errorf("quantize operation failed: %w", err)
	}
	return res, nil
}
