// Package domain holds the routing rule model: predicates, targets, and the
// deterministic evaluation order.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RouteContext carries the facts a routing query is evaluated against.
// Well-known fields resolve by name; anything else falls through to Facts.
type RouteContext struct {
	Department  string
	Channel     string
	SignalScore *float64
	Category    string
	Facts       map[string]string
}

// Field resolves a predicate field name to its value. The boolean reports
// presence; absent fields only satisfy an absence predicate.
func (c *RouteContext) Field(name string) (string, bool) {
	switch name {
	case "department":
		return c.Department, c.Department != ""
	case "channel":
		return c.Channel, c.Channel != ""
	case "category":
		return c.Category, c.Category != ""
	case "score":
		if c.SignalScore == nil {
			return "", false
		}
		return strconv.FormatFloat(*c.SignalScore, 'f', -1, 64), true
	default:
		v, ok := c.Facts[name]
		return v, ok
	}
}

// Predicate is one conjunct of a rule's condition list.
type Predicate interface {
	FieldName() string
	Matches(ctx *RouteContext) bool
}

// EqualsPredicate matches when the field is present and equal to Value.
type EqualsPredicate struct {
	Field string
	Value string
}

func (p EqualsPredicate) FieldName() string { return p.Field }

func (p EqualsPredicate) Matches(ctx *RouteContext) bool {
	v, ok := ctx.Field(p.Field)
	return ok && v == p.Value
}

// RangePredicate matches when the field parses as a number inside [Min, Max].
// A nil bound is open.
type RangePredicate struct {
	Field string
	Min   *float64
	Max   *float64
}

func (p RangePredicate) FieldName() string { return p.Field }

func (p RangePredicate) Matches(ctx *RouteContext) bool {
	raw, ok := ctx.Field(p.Field)
	if !ok {
		return false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

// OneOfPredicate matches when the field equals any listed value.
type OneOfPredicate struct {
	Field  string
	Values []string
}

func (p OneOfPredicate) FieldName() string { return p.Field }

func (p OneOfPredicate) Matches(ctx *RouteContext) bool {
	v, ok := ctx.Field(p.Field)
	if !ok {
		return false
	}
	for _, candidate := range p.Values {
		if v == candidate {
			return true
		}
	}
	return false
}

// ExistsPredicate matches on field presence (or absence when Present is false).
type ExistsPredicate struct {
	Field   string
	Present bool
}

func (p ExistsPredicate) FieldName() string { return p.Field }

func (p ExistsPredicate) Matches(ctx *RouteContext) bool {
	_, ok := ctx.Field(p.Field)
	return ok == p.Present
}

// conditionJSON is the stored wire form of a predicate.
type conditionJSON struct {
	Field   string   `json:"field"`
	Op      string   `json:"op"`
	Value   string   `json:"value,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Values  []string `json:"values,omitempty"`
	Present *bool    `json:"present,omitempty"`
}

// ParseConditions decodes a stored condition list into predicates. Parsing
// happens once at rule load; a malformed list is a configuration error, not
// something to discover per query.
func ParseConditions(raw []byte) ([]Predicate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var conds []conditionJSON
	if err := json.Unmarshal(raw, &conds); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}

	out := make([]Predicate, 0, len(conds))
	for i, c := range conds {
		if c.Field == "" {
			return nil, fmt.Errorf("condition %d: field is required", i)
		}
		switch c.Op {
		case "equals":
			if c.Value == "" {
				return nil, fmt.Errorf("condition %d: equals requires a value", i)
			}
			out = append(out, EqualsPredicate{Field: c.Field, Value: c.Value})
		case "range":
			if c.Min == nil && c.Max == nil {
				return nil, fmt.Errorf("condition %d: range requires min or max", i)
			}
			if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
				return nil, fmt.Errorf("condition %d: range min exceeds max", i)
			}
			out = append(out, RangePredicate{Field: c.Field, Min: c.Min, Max: c.Max})
		case "one_of":
			if len(c.Values) == 0 {
				return nil, fmt.Errorf("condition %d: one_of requires values", i)
			}
			out = append(out, OneOfPredicate{Field: c.Field, Values: c.Values})
		case "exists":
			present := true
			if c.Present != nil {
				present = *c.Present
			}
			out = append(out, ExistsPredicate{Field: c.Field, Present: present})
		default:
			return nil, fmt.Errorf("condition %d: unknown operator %q", i, c.Op)
		}
	}
	return out, nil
}

// EncodeConditions is the inverse of ParseConditions, used when storing rules.
func EncodeConditions(preds []Predicate) ([]byte, error) {
	conds := make([]conditionJSON, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case EqualsPredicate:
			conds = append(conds, conditionJSON{Field: v.Field, Op: "equals", Value: v.Value})
		case RangePredicate:
			conds = append(conds, conditionJSON{Field: v.Field, Op: "range", Min: v.Min, Max: v.Max})
		case OneOfPredicate:
			conds = append(conds, conditionJSON{Field: v.Field, Op: "one_of", Values: v.Values})
		case ExistsPredicate:
			present := v.Present
			conds = append(conds, conditionJSON{Field: v.Field, Op: "exists", Present: &present})
		default:
			return nil, fmt.Errorf("unknown predicate type %T", p)
		}
	}
	return json.Marshal(conds)
}
