package model

import "encoding/json"

// OptFloat is a float64 that may be unavailable. Indicators report it
// instead of a sentinel value so "not enough history yet" can never be
// confused with a real zero. The zero value is unavailable.
type OptFloat struct {
	Value float64
	Valid bool
}

// Some returns an available OptFloat holding v.
func Some(v float64) OptFloat {
	return OptFloat{Value: v, Valid: true}
}

// None returns an unavailable OptFloat.
func None() OptFloat {
	return OptFloat{}
}

// GE reports whether the value is available and >= x.
func (o OptFloat) GE(x float64) bool { return o.Valid && o.Value >= x }

// LE reports whether the value is available and <= x.
func (o OptFloat) LE(x float64) bool { return o.Valid && o.Value <= x }

// MarshalJSON encodes unavailable values as null.
func (o OptFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as unavailable.
func (o *OptFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptFloat{}
		return nil
	}
	o.Valid = true
	return json.Unmarshal(data, &o.Value)
}
