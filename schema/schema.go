// Package schema samples the properties an entity schema exposes along its
// inheritance chain, and memoizes the result per schema name.
package schema

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/goforj/flight"
)

// DefaultSampleSize is the number of properties Describe joins.
const DefaultSampleSize = 2

// ErrNilSchema is returned by Describe for a nil schema.
var ErrNilSchema = errors.New("schema: nil schema")

// Kind classifies a property's type.
type Kind int

const (
	// KindOther is any property that is not a reference to another entity.
	KindOther Kind = iota
	// KindEntityReference points at another entity and is never sampled.
	KindEntityReference
)

// Property is one named, typed member of a schema.
type Property struct {
	Name string
	Kind Kind
}

// Schema is an entity type with its own properties and an optional base.
type Schema struct {
	Name       string
	Properties []Property
	Base       *Schema
}

// Lineage yields s, then its base, then the base's base, and so on. A schema
// that reappears in its own chain ends the walk.
func (s *Schema) Lineage() iter.Seq[*Schema] {
	return func(yield func(*Schema) bool) {
		seen := make(map[*Schema]struct{})
		for cur := s; cur != nil; cur = cur.Base {
			if _, ok := seen[cur]; ok {
				return
			}
			seen[cur] = struct{}{}
			if !yield(cur) {
				return
			}
		}
	}
}

// SampleProperties returns the names of the first n properties along s's
// lineage that are not entity references, own properties first.
func SampleProperties(s *Schema, n int) []string {
	if s == nil || n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for cur := range s.Lineage() {
		for _, p := range cur.Properties {
			if p.Kind == KindEntityReference {
				continue
			}
			out = append(out, p.Name)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

// Describer renders the comma-joined property sample for a schema once per
// schema name, however many goroutines ask for it.
type Describer struct {
	samples *flight.Group[string, string]
	n       int
}

// NewDescriber returns a Describer sampling n properties; n <= 0 means
// DefaultSampleSize.
func NewDescriber(n int, opts ...flight.GroupOption) *Describer {
	if n <= 0 {
		n = DefaultSampleSize
	}
	return &Describer{samples: flight.NewGroup[string, string](opts...), n: n}
}

// Describe returns s's sample, e.g. "id,name". Schemas are keyed by Name, so
// two distinct schemas sharing a name share a description until Forget.
func (d *Describer) Describe(ctx context.Context, s *Schema) (string, error) {
	if s == nil {
		return "", ErrNilSchema
	}
	return d.samples.Do(ctx, s.Name, func() flight.Producer[string] {
		return func(context.Context) (string, error) {
			return strings.Join(SampleProperties(s, d.n), ","), nil
		}
	})
}

// Forget drops the memoized description for name.
func (d *Describer) Forget(name string) {
	d.samples.Forget(name)
}

// Close releases the describer's background resources.
func (d *Describer) Close() {
	d.samples.Close()
}
