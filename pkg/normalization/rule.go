package normalization

import (
	"fmt"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// Rule is one step in a normalization chain. Apply receives the field set
// produced by the previous step and returns the transformed set. The
// history belongs to the key being normalized; stateful rules read the
// previous update's outcome from it.
//
// Apply must not mutate history on failure: a failed chain leaves the
// key's history untouched.
type Rule interface {
	// Name identifies the rule in configuration and error messages.
	Name() string

	// Apply transforms fields, consulting the key's history as needed.
	Apply(itemID string, fields livedata.FieldSet, hist *History) (livedata.FieldSet, error)
}

// RequiredFields fails the chain when any named field is absent.
// Placing it first in a chain rejects malformed feed records outright.
type RequiredFields struct {
	Names []string
}

// Name implements Rule.
func (r RequiredFields) Name() string { return "required_fields" }

// Apply implements Rule.
func (r RequiredFields) Apply(itemID string, fields livedata.FieldSet, _ *History) (livedata.FieldSet, error) {
	for _, name := range r.Names {
		if _, ok := fields.Get(name); !ok {
			return nil, fmt.Errorf("required field %q missing for item %s", name, itemID)
		}
	}
	return fields, nil
}

// RenameField renames one field, preserving its position.
// Absence of the source field is not an error.
type RenameField struct {
	From string
	To   string
}

// Name implements Rule.
func (r RenameField) Name() string { return "rename_field" }

// Apply implements Rule.
func (r RenameField) Apply(_ string, fields livedata.FieldSet, _ *History) (livedata.FieldSet, error) {
	for i, f := range fields {
		if f.Name == r.From {
			fields[i].Name = r.To
			break
		}
	}
	return fields, nil
}

// FieldFilter keeps only the named fields, in their original order.
type FieldFilter struct {
	Allow []string
}

// Name implements Rule.
func (r FieldFilter) Name() string { return "field_filter" }

// Apply implements Rule.
func (r FieldFilter) Apply(_ string, fields livedata.FieldSet, _ *History) (livedata.FieldSet, error) {
	allowed := make(map[string]struct{}, len(r.Allow))
	for _, name := range r.Allow {
		allowed[name] = struct{}{}
	}
	out := fields[:0]
	for _, f := range fields {
		if _, ok := allowed[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// ScaleField multiplies one numeric field by a constant factor, e.g. for
// unit changes between feed and canonical form.
type ScaleField struct {
	Field  string
	Factor float64
}

// Name implements Rule.
func (r ScaleField) Name() string { return "scale_field" }

// Apply implements Rule.
func (r ScaleField) Apply(itemID string, fields livedata.FieldSet, _ *History) (livedata.FieldSet, error) {
	v, ok := fields.Float64(r.Field)
	if !ok {
		return fields, nil
	}
	if r.Factor == 0 {
		return nil, fmt.Errorf("scale factor zero for field %q, item %s", r.Field, itemID)
	}
	return fields.Set(r.Field, v*r.Factor), nil
}

// MidPrice derives a mid price from the bid/ask pair, falling back to the
// last trade when one side is missing. When none of the inputs are
// present the set passes through unchanged.
type MidPrice struct {
	Bid  string
	Ask  string
	Last string
	Out  string
}

// StandardMidPrice returns a MidPrice over the well-known price fields.
func StandardMidPrice() MidPrice {
	return MidPrice{
		Bid:  livedata.FieldBid,
		Ask:  livedata.FieldAsk,
		Last: livedata.FieldLast,
		Out:  livedata.FieldMid,
	}
}

// Name implements Rule.
func (r MidPrice) Name() string { return "mid_price" }

// Apply implements Rule.
func (r MidPrice) Apply(_ string, fields livedata.FieldSet, _ *History) (livedata.FieldSet, error) {
	bid, hasBid := fields.Float64(r.Bid)
	ask, hasAsk := fields.Float64(r.Ask)
	if hasBid && hasAsk {
		return fields.Set(r.Out, (bid+ask)/2), nil
	}
	if last, ok := fields.Float64(r.Last); ok {
		return fields.Set(r.Out, last), nil
	}
	return fields, nil
}

// ChangeDelta emits the difference between a field's value and its value
// in the previous successfully normalized update. The first update for a
// key emits zero.
type ChangeDelta struct {
	Field string
	Out   string
}

// Name implements Rule.
func (r ChangeDelta) Name() string { return "change_delta" }

// Apply implements Rule.
func (r ChangeDelta) Apply(_ string, fields livedata.FieldSet, hist *History) (livedata.FieldSet, error) {
	cur, ok := fields.Float64(r.Field)
	if !ok {
		return fields, nil
	}
	prev, hasPrev := hist.LastValue(r.Field)
	if !hasPrev {
		return fields.Set(r.Out, 0.0), nil
	}
	return fields.Set(r.Out, cur-prev), nil
}

// StaleFlag marks an update whose watched field is unchanged from the
// previous normalized update. The first update for a key is never stale.
type StaleFlag struct {
	Field string
	Out   string
}

// Name implements Rule.
func (r StaleFlag) Name() string { return "stale_flag" }

// Apply implements Rule.
func (r StaleFlag) Apply(_ string, fields livedata.FieldSet, hist *History) (livedata.FieldSet, error) {
	cur, ok := fields.Float64(r.Field)
	if !ok {
		return fields, nil
	}
	prev, hasPrev := hist.LastValue(r.Field)
	return fields.Set(r.Out, hasPrev && prev == cur), nil
}
