package livedata

// Field is one named value within a field set.
//
// CBOR encoding:
//
//	{
//	  1: name,   // string
//	  2: value   // scalar or array
//	}
type Field struct {
	Name  string `cbor:"1,keyasint"`
	Value any    `cbor:"2,keyasint"`
}

// FieldSet is an ordered collection of named values for one specification
// key. It is the unit exchanged on the wire for snapshots and updates.
// Order is preserved across Set calls; a Set for an existing name replaces
// the value in place.
type FieldSet []Field

// Get returns the value for name and whether it is present.
func (fs FieldSet) Get(name string) (any, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Float64 returns the value for name coerced to float64.
// Returns false if the field is absent or not numeric.
func (fs FieldSet) Float64(name string) (float64, bool) {
	v, ok := fs.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Set replaces the value for name if present, otherwise appends a new
// field, and returns the updated set.
func (fs FieldSet) Set(name string, value any) FieldSet {
	for i, f := range fs {
		if f.Name == name {
			fs[i].Value = value
			return fs
		}
	}
	return append(fs, Field{Name: name, Value: value})
}

// Remove deletes the field for name, preserving the order of the rest.
func (fs FieldSet) Remove(name string) FieldSet {
	for i, f := range fs {
		if f.Name == name {
			return append(fs[:i], fs[i+1:]...)
		}
	}
	return fs
}

// Names returns the field names in order.
func (fs FieldSet) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Clone returns a copy whose backing array is independent of the receiver.
// Values are copied shallowly; scalar values make this a full copy in
// practice.
func (fs FieldSet) Clone() FieldSet {
	if fs == nil {
		return nil
	}
	out := make(FieldSet, len(fs))
	copy(out, fs)
	return out
}
