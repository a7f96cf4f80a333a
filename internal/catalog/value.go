package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is a loosely typed form field. It decodes from a JSON string, a JSON
// number or null, and keeps the raw text so that validation can report on
// input that does not parse.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "":
		*v = ""
	case s[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*v = Value(str)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("form value must be a string or a number: %w", err)
		}
		*v = Value(n)
	}
	return nil
}

func (v Value) String() string { return string(v) }

// Empty reports whether the field was left blank.
func (v Value) Empty() bool { return strings.TrimSpace(string(v)) == "" }

// Int parses the value as a base-10 integer.
func (v Value) Int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(v)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decimal parses the value as an exact decimal number.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.Empty() {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(v)))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IntValue formats n as a form value.
func IntValue(n int) Value { return Value(strconv.Itoa(n)) }
