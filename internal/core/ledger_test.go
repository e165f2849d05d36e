package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestLegs(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want []Leg
	}{
		{"income credits source", Transaction{Type: TxIncome, Amount: Cents(500), AccountID: 1}, []Leg{{1, 500}}},
		{"expense debits source", Transaction{Type: TxExpense, Amount: Cents(300), AccountID: 1}, []Leg{{1, -300}}},
		{"transfer moves funds", Transaction{Type: TxTransfer, Amount: Cents(200), AccountID: 4, DestinationAccountID: ptr(2)}, []Leg{{4, -200}, {2, 200}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tx.Legs()
			if err != nil {
				t.Fatalf("Legs() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Legs() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := (Transaction{Type: "bonus", Amount: Cents(1), AccountID: 1}).Legs(); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown type must not produce legs, got %v", err)
	}
}

func TestNetLegs(t *testing.T) {
	old := []Leg{{1, -300}}
	next := []Leg{{1, 500}}
	got := NetLegs(Reverse(old), next)
	if want := []Leg{{1, 800}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("NetLegs() = %v, want %v", got, want)
	}

	unchanged := NetLegs(Reverse(next), next)
	if len(unchanged) != 0 {
		t.Fatalf("identical edit should net to nothing, got %v", unchanged)
	}

	ordered := NetLegs([]Leg{{9, -1}, {3, 1}})
	if ordered[0].AccountID != 3 || ordered[1].AccountID != 9 {
		t.Fatalf("legs not ordered by account: %v", ordered)
	}
}

func TestAccountIDs(t *testing.T) {
	got := AccountIDs([]Leg{{7, 1}, {2, -1}}, []Leg{{7, 5}})
	if want := []int64{2, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("AccountIDs() = %v, want %v", got, want)
	}
}

func TestReplayBalance(t *testing.T) {
	txs := []Transaction{
		{ID: 1, Type: TxIncome, Amount: Cents(10000), AccountID: 1},
		{ID: 2, Type: TxExpense, Amount: Cents(3000), AccountID: 1},
		{ID: 3, Type: TxTransfer, Amount: Cents(5000), AccountID: 1, DestinationAccountID: ptr(2)},
		{ID: 4, Type: TxTransfer, Amount: Cents(700), AccountID: 2, DestinationAccountID: ptr(1)},
	}
	got, err := ReplayBalance(Cents(100), 1, txs)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(100 + 10000 - 3000 - 5000 + 700); got.Cents != want {
		t.Fatalf("replay account 1 = %d, want %d", got.Cents, want)
	}
	got, _ = ReplayBalance(Cents(0), 2, txs)
	if got.Cents != 4300 {
		t.Fatalf("replay account 2 = %d, want 4300", got.Cents)
	}
}

func TestSummaryExcludesTransfers(t *testing.T) {
	var s Summary
	for _, e := range []struct {
		t   TxType
		amt int64
	}{{TxIncome, 10000}, {TxExpense, 3000}, {TxTransfer, 5000}} {
		if err := s.Add(e.t, Cents(e.amt)); err != nil {
			t.Fatal(err)
		}
	}
	if s.TotalIncome.Cents != 10000 || s.TotalExpense.Cents != 3000 || s.NetBalance.Cents != 7000 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if err := s.Add("refund", Cents(1)); err == nil {
		t.Fatalf("unknown type must be rejected")
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, limit, total int
		wantPage, wantPages int
	}{
		{1, 25, 0, 1, 0},
		{3, 10, 21, 3, 3},
		{3, 10, 20, 2, 2},
		{9, 10, 5, 1, 1},
		{2, 10, 11, 2, 2},
	}
	for _, tt := range tests {
		page, pages := ClampPage(tt.page, tt.limit, tt.total)
		if page != tt.wantPage || pages != tt.wantPages {
			t.Fatalf("ClampPage(%d,%d,%d) = (%d,%d), want (%d,%d)", tt.page, tt.limit, tt.total, page, pages, tt.wantPage, tt.wantPages)
		}
	}

	if p, l := NormalizePaging(0, 0); p != 1 || l != DefaultPageSize {
		t.Fatalf("NormalizePaging defaults = %d,%d", p, l)
	}
	if _, l := NormalizePaging(1, 1000); l != MaxPageSize {
		t.Fatalf("limit not capped: %d", l)
	}
}
