// Package feat implements flat feature structures and the unification
// operations the transfer engine consumes: strict and non-strict
// unification, directional agreement and mutual agreement.
//
// A FeatStruct maps feature names to atomic values (strings, numbers or
// booleans). Values are compared with ==. Operations never modify their
// arguments; they return new structures.
package feat

import (
	"fmt"
	"sort"
	"strings"
)

// FeatStruct is a flat feature structure. A nil FeatStruct is empty.
type FeatStruct map[string]any

// Pair names a source feature and the target feature that must agree with it.
type Pair struct {
	Source string `yaml:"source" validate:"required"`
	Target string `yaml:"target" validate:"required"`
}

// Copy returns a shallow copy of fs (never nil).
func (fs FeatStruct) Copy() FeatStruct {
	out := make(FeatStruct, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Get returns the value of feature name and whether it is present.
func (fs FeatStruct) Get(name string) (any, bool) {
	v, ok := fs[name]
	return v, ok
}

// String renders fs with sorted keys, e.g. "[num=sg,per=3]".
func (fs FeatStruct) String() string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fs[k])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Equal reports whether fs and other have the same features and values.
func (fs FeatStruct) Equal(other FeatStruct) bool {
	if len(fs) != len(other) {
		return false
	}
	for k, v := range fs {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Validate reports a feature whose value is not atomic.
func (fs FeatStruct) Validate() error {
	for k, v := range fs {
		switch v.(type) {
		case string, bool, int, int64, uint64, float64:
		default:
			return fmt.Errorf("feature %q: value %v (%T) is not atomic", k, v, v)
		}
	}
	return nil
}

// Unify combines a and pattern. It fails when a feature is present in both
// with different values. When strict is set, every feature whose value in
// pattern is true must also be present and true in a.
func Unify(a, pattern FeatStruct, strict bool) (FeatStruct, bool) {
	out := a.Copy()
	for k, pv := range pattern {
		av, ok := a[k]
		if strict && pv == true && (!ok || av != true) {
			return nil, false
		}
		if ok {
			if av != pv {
				return nil, false
			}
			continue
		}
		out[k] = pv
	}
	return out, true
}

// UnifyAll unifies the structures left to right, skipping nil entries.
func UnifyAll(all ...FeatStruct) (FeatStruct, bool) {
	out := FeatStruct{}
	for _, fs := range all {
		var ok bool
		if out, ok = Unify(out, fs, false); !ok {
			return nil, false
		}
	}
	return out, true
}

// Agree returns a copy of target in which, for every pair, the target
// feature takes the value the source feature has in source. Features
// absent from source leave target unchanged.
func Agree(source, target FeatStruct, pairs []Pair) FeatStruct {
	out := target.Copy()
	for _, p := range pairs {
		if v, ok := source[p.Source]; ok {
			out[p.Target] = v
		}
	}
	return out
}

// MutualAgree makes a and b compatible along pairs: a value present on only
// one side is copied to the other. It fails when both sides carry different
// values for a pair.
func MutualAgree(a, b FeatStruct, pairs []Pair) (FeatStruct, FeatStruct, bool) {
	na, nb := a.Copy(), b.Copy()
	for _, p := range pairs {
		av, aok := na[p.Source]
		bv, bok := nb[p.Target]
		switch {
		case aok && bok:
			if av != bv {
				return nil, nil, false
			}
		case aok:
			nb[p.Target] = av
		case bok:
			na[p.Source] = bv
		}
	}
	return na, nb, true
}

// MergePairs combines agreement pair lists. It fails when one source feature
// is paired with two different target features.
func MergePairs(lists ...[]Pair) ([]Pair, bool) {
	var out []Pair
	seen := make(map[string]string)
	for _, list := range lists {
		for _, p := range list {
			if t, ok := seen[p.Source]; ok {
				if t != p.Target {
					return nil, false
				}
				continue
			}
			seen[p.Source] = p.Target
			out = append(out, p)
		}
	}
	return out, true
}

// Standard is the default unifier, delegating to the package functions.
type Standard struct{}

// Default is the unifier used when none is configured.
var Default Standard

// Unify calls Unify.
func (Standard) Unify(a, pattern FeatStruct, strict bool) (FeatStruct, bool) {
	return Unify(a, pattern, strict)
}

// Agree calls Agree.
func (Standard) Agree(source, target FeatStruct, pairs []Pair) FeatStruct {
	return Agree(source, target, pairs)
}

// MutualAgree calls MutualAgree.
func (Standard) MutualAgree(a, b FeatStruct, pairs []Pair) (FeatStruct, FeatStruct, bool) {
	return MutualAgree(a, b, pairs)
}
