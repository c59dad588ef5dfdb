package domain

import (
	"testing"
)

func f(v float64) *float64 { return &v }

func TestPredicateMatching(t *testing.T) {
	score := 72.5
	ctx := &RouteContext{
		Department:  "sales",
		Channel:     "web_form",
		SignalScore: &score,
		Category:    "suv",
		Facts:       map[string]string{"campaign": "spring", "region": "northeast"},
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"equals on known field", EqualsPredicate{Field: "department", Value: "sales"}, true},
		{"equals mismatch", EqualsPredicate{Field: "department", Value: "service"}, false},
		{"equals on fact", EqualsPredicate{Field: "campaign", Value: "spring"}, true},
		{"equals on absent field never matches", EqualsPredicate{Field: "missing", Value: ""}, false},
		{"range inside bounds", RangePredicate{Field: "score", Min: f(50), Max: f(100)}, true},
		{"range below min", RangePredicate{Field: "score", Min: f(80)}, false},
		{"range open max", RangePredicate{Field: "score", Min: f(70)}, true},
		{"range on non-numeric field", RangePredicate{Field: "department", Min: f(0)}, false},
		{"one_of membership", OneOfPredicate{Field: "category", Values: []string{"truck", "suv"}}, true},
		{"one_of miss", OneOfPredicate{Field: "category", Values: []string{"sedan"}}, false},
		{"exists present", ExistsPredicate{Field: "region", Present: true}, true},
		{"exists absent field", ExistsPredicate{Field: "trade_in", Present: true}, false},
		{"absence predicate on absent field", ExistsPredicate{Field: "trade_in", Present: false}, true},
		{"absence predicate on present field", ExistsPredicate{Field: "region", Present: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred.Matches(ctx); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicatesOnMissingScore(t *testing.T) {
	ctx := &RouteContext{Department: "sales"}

	if (RangePredicate{Field: "score", Min: f(0)}).Matches(ctx) {
		t.Fatal("range must not match when the score is absent")
	}
	if !(ExistsPredicate{Field: "score", Present: false}).Matches(ctx) {
		t.Fatal("absence predicate should match a missing score")
	}
}

func TestParseConditions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{
			name:    "valid conjunction",
			raw:     `[{"field":"department","op":"equals","value":"sales"},{"field":"score","op":"range","min":50},{"field":"category","op":"one_of","values":["suv","truck"]},{"field":"trade_in","op":"exists"}]`,
			wantLen: 4,
		},
		{name: "empty list", raw: `[]`, wantLen: 0},
		{name: "unknown operator", raw: `[{"field":"x","op":"regex","value":"a.*"}]`, wantErr: true},
		{name: "equals without value", raw: `[{"field":"x","op":"equals"}]`, wantErr: true},
		{name: "range without bounds", raw: `[{"field":"x","op":"range"}]`, wantErr: true},
		{name: "inverted range", raw: `[{"field":"x","op":"range","min":10,"max":5}]`, wantErr: true},
		{name: "one_of without values", raw: `[{"field":"x","op":"one_of"}]`, wantErr: true},
		{name: "missing field", raw: `[{"op":"exists"}]`, wantErr: true},
		{name: "malformed json", raw: `{not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preds, err := ParseConditions([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(preds) != tt.wantLen {
				t.Fatalf("parsed %d predicates, want %d", len(preds), tt.wantLen)
			}
		})
	}
}

func TestEncodeConditionsRoundTrip(t *testing.T) {
	preds := []Predicate{
		EqualsPredicate{Field: "department", Value: "sales"},
		RangePredicate{Field: "score", Min: f(50), Max: f(100)},
		OneOfPredicate{Field: "category", Values: []string{"suv"}},
		ExistsPredicate{Field: "trade_in", Present: false},
	}

	raw, err := EncodeConditions(preds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := ParseConditions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded) != len(preds) {
		t.Fatalf("round trip lost predicates: %d != %d", len(decoded), len(preds))
	}
}
