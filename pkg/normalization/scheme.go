package normalization

import (
	"fmt"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// Scheme is a named, ordered rule chain transforming raw feed values into
// a canonical field set.
type Scheme struct {
	name  string
	rules []Rule
}

// NewScheme creates a scheme from a rule chain. Rules run in the given
// order.
func NewScheme(name string, rules ...Rule) *Scheme {
	return &Scheme{name: name, rules: rules}
}

// Name returns the scheme name.
func (s *Scheme) Name() string {
	return s.name
}

// Rules returns the rule chain in application order.
func (s *Scheme) Rules() []Rule {
	return s.rules
}

// Normalize runs raw through the rule chain with the key's history. On
// success the history's last-normalized state is advanced to the result.
// On failure the history is left untouched and the error names the rule
// that rejected the update.
//
// The input set is never mutated; rules operate on a copy.
func (s *Scheme) Normalize(itemID string, raw livedata.FieldSet, hist *History) (livedata.FieldSet, error) {
	fields := raw.Clone()
	var err error
	for _, rule := range s.rules {
		fields, err = rule.Apply(itemID, fields, hist)
		if err != nil {
			return nil, fmt.Errorf("scheme %s, rule %s: %w", s.name, rule.Name(), err)
		}
	}
	hist.SetLastNormalized(fields)
	return fields, nil
}

// PassThrough returns a scheme with an empty rule chain: raw fields are
// published unchanged. Useful as the raw tier alongside richer schemes.
func PassThrough(name string) *Scheme {
	return NewScheme(name)
}
