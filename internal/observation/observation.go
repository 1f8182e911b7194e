// Package observation holds the in-memory representation of one timestamped
// bundle of station measurements and the physical-domain filter applied to
// it before aggregation.
package observation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chrissnell/meteodb/internal/types"
)

// Observation is one measurement bundle from one station. Every measurement
// slot is an optional value: a slot whose Valid flag is false carries no
// value and must not be read.
type Observation struct {
	Station   types.StationID
	Timestamp time.Time
	Day       time.Time

	floats [numFields]sql.NullFloat64
	ints   [numFields]sql.NullInt64
}

// New returns an empty observation for station at t.
func New(station types.StationID, t time.Time) *Observation {
	o := &Observation{Station: station}
	o.SetTimestamp(t)
	return o
}

// SetTimestamp sets the timestamp, truncated to the second, and derives the
// UTC calendar day.
func (o *Observation) SetTimestamp(t time.Time) {
	o.Timestamp = t.UTC().Truncate(time.Second)
	o.Day = types.Day(o.Timestamp)
}

func resolve(name string) (FieldDef, error) {
	def, ok := Lookup(name)
	if !ok {
		return FieldDef{}, fmt.Errorf("%w: unknown field %q", types.ErrMalformedInput, name)
	}
	return def, nil
}

// Set stores value in the named field and marks it present. Float fields
// accept float32 and float64, integer fields accept int, int32 and int64.
func (o *Observation) Set(name string, value interface{}) error {
	def, err := resolve(name)
	if err != nil {
		return err
	}

	switch def.Kind {
	case KindFloat:
		switch v := value.(type) {
		case float64:
			o.SetFloat(def.Field, v)
		case float32:
			o.SetFloat(def.Field, float64(v))
		default:
			return fmt.Errorf("%w: field %s expects a float, got %T", types.ErrMalformedInput, name, value)
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			o.SetInt(def.Field, int64(v))
		case int32:
			o.SetInt(def.Field, int64(v))
		case int64:
			o.SetInt(def.Field, v)
		default:
			return fmt.Errorf("%w: field %s expects an integer, got %T", types.ErrMalformedInput, name, value)
		}
	}
	return nil
}

// Get returns the value of the named field as float64 or int. It fails with
// ErrNotPresent when the field is absent.
func (o *Observation) Get(name string) (interface{}, error) {
	def, err := resolve(name)
	if err != nil {
		return nil, err
	}
	if !o.Present(def.Field) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotPresent, name)
	}
	if def.Kind == KindInt {
		return int(o.ints[def.Field].Int64), nil
	}
	return o.floats[def.Field].Float64, nil
}

// IsPresent returns the presence flag of the named field.
func (o *Observation) IsPresent(name string) (bool, error) {
	def, err := resolve(name)
	if err != nil {
		return false, err
	}
	return o.Present(def.Field), nil
}

// Present returns the presence flag of f.
func (o *Observation) Present(f Field) bool {
	if f.Def().Kind == KindInt {
		return o.ints[f].Valid
	}
	return o.floats[f].Valid
}

// Float returns f as an optional float64, converting integer fields.
func (o *Observation) Float(f Field) sql.NullFloat64 {
	if f.Def().Kind == KindInt {
		v := o.ints[f]
		return sql.NullFloat64{Float64: float64(v.Int64), Valid: v.Valid}
	}
	return o.floats[f]
}

// Int returns an integer field as an optional int64. Float fields are
// reported absent.
func (o *Observation) Int(f Field) sql.NullInt64 {
	if f.Def().Kind != KindInt {
		return sql.NullInt64{}
	}
	return o.ints[f]
}

// SetFloat sets a float field. Calling it on an integer field truncates.
func (o *Observation) SetFloat(f Field, v float64) {
	if f.Def().Kind == KindInt {
		o.ints[f] = sql.NullInt64{Int64: int64(v), Valid: true}
		return
	}
	o.floats[f] = sql.NullFloat64{Float64: v, Valid: true}
}

// SetInt sets an integer field. Calling it on a float field converts.
func (o *Observation) SetInt(f Field, v int64) {
	if f.Def().Kind != KindInt {
		o.floats[f] = sql.NullFloat64{Float64: float64(v), Valid: true}
		return
	}
	o.ints[f] = sql.NullInt64{Int64: v, Valid: true}
}

// Clear marks f absent and zeroes its value.
func (o *Observation) Clear(f Field) {
	o.floats[f] = sql.NullFloat64{}
	o.ints[f] = sql.NullInt64{}
}

// Values returns the store representation of every field in column order:
// nil for absent fields, float64 or int64 otherwise.
func (o *Observation) Values() []interface{} {
	out := make([]interface{}, numFields)
	for i := Field(0); i < numFields; i++ {
		if !o.Present(i) {
			continue
		}
		if i.Def().Kind == KindInt {
			out[i] = o.ints[i].Int64
		} else {
			out[i] = o.floats[i].Float64
		}
	}
	return out
}

// FilterOutImpossibleValues drops every field whose value lies outside its
// physical domain. See Filter.
func (o *Observation) FilterOutImpossibleValues() {
	Filter(o)
}
