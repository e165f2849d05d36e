package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 12345}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Amount.Cents != 12345 {
		t.Fatalf("cents = %d, want 12345", payload.Amount.Cents)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":12345}` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestMoneyJSONRejectsNonIntegers(t *testing.T) {
	for _, in := range []string{`12.5`, `"100"`, `1e3`, `true`} {
		var m Money
		err := json.Unmarshal([]byte(in), &m)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		1234:   "12.34",
		-1234:  "-12.34",
		100000: "1000.00",
	}
	for cents, want := range cases {
		if got := Cents(cents).String(); got != want {
			t.Fatalf("String(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := Cents(1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Cents(0).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := Cents(MaxCents).Validate(); err != nil {
		t.Fatalf("MaxCents rejected: %v", err)
	}
	if err := Cents(MaxCents + 1).Validate(); !errors.Is(err, ErrAmountTooLarge) || !errors.Is(err, ErrValidation) {
		t.Fatalf("amount above MaxCents: got %v", err)
	}
}

func TestMoneyCheckedAdd(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		delta   int64
		want    int64
		wantErr bool
	}{
		{"plain add", 100, 50, 150, false},
		{"plain subtract", 100, -150, -50, false},
		{"up to max", math.MaxInt64 - 10, 10, math.MaxInt64, false},
		{"past max", math.MaxInt64 - 10, 11, 0, true},
		{"down to min", math.MinInt64 + 10, -10, math.MinInt64, false},
		{"past min", math.MinInt64 + 10, -11, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cents(tt.balance).CheckedAdd(tt.delta)
			if tt.wantErr {
				if !errors.Is(err, ErrBalanceOverflow) || !errors.Is(err, ErrValidation) {
					t.Fatalf("CheckedAdd() error = %v, want overflow", err)
				}
				return
			}
			if err != nil || got.Cents != tt.want {
				t.Fatalf("CheckedAdd() = %d, %v, want %d", got.Cents, err, tt.want)
			}
		})
	}
}
