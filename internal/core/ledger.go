package core

import (
	"fmt"
	"sort"
)

// Leg is the signed effect of a transaction on one account balance.
type Leg struct {
	AccountID int64
	Delta     int64
}

// Bucket is the summary total a transaction type contributes to.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketIncome
	BucketExpense
)

// Bucket classifies t for summaries. Transfers count as neither income nor
// expense.
func (t TxType) Bucket() (Bucket, error) {
	switch t {
	case TxIncome:
		return BucketIncome, nil
	case TxExpense:
		return BucketExpense, nil
	case TxTransfer:
		return BucketNone, nil
	}
	return BucketNone, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t)
}

// Legs returns the balance effects of t, source account first.
func (t Transaction) Legs() ([]Leg, error) {
	amt := t.Amount.Cents
	switch t.Type {
	case TxIncome:
		return []Leg{{AccountID: t.AccountID, Delta: amt}}, nil
	case TxExpense:
		return []Leg{{AccountID: t.AccountID, Delta: -amt}}, nil
	case TxTransfer:
		if t.DestinationAccountID == nil {
			return nil, ErrMissingDestination
		}
		return []Leg{
			{AccountID: t.AccountID, Delta: -amt},
			{AccountID: *t.DestinationAccountID, Delta: amt},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Type)
}

// Reverse negates every leg.
func Reverse(legs []Leg) []Leg {
	out := make([]Leg, len(legs))
	for i, l := range legs {
		out[i] = Leg{AccountID: l.AccountID, Delta: -l.Delta}
	}
	return out
}

// NetLegs merges legs per account, drops zero deltas and orders the result by
// ascending account id, which is also the lock order.
func NetLegs(legs ...[]Leg) []Leg {
	sums := make(map[int64]int64)
	for _, set := range legs {
		for _, l := range set {
			sums[l.AccountID] += l.Delta
		}
	}
	out := make([]Leg, 0, len(sums))
	for id, d := range sums {
		if d != 0 {
			out = append(out, Leg{AccountID: id, Delta: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// AccountIDs returns the distinct accounts touched by the legs in ascending
// order.
func AccountIDs(legs ...[]Leg) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, set := range legs {
		for _, l := range set {
			if _, ok := seen[l.AccountID]; ok {
				continue
			}
			seen[l.AccountID] = struct{}{}
			ids = append(ids, l.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReplayBalance recomputes an account balance from its opening value and the
// live transactions that reference it.
func ReplayBalance(initial Money, accountID int64, txs []Transaction) (Money, error) {
	bal := initial.Cents
	for _, t := range txs {
		legs, err := t.Legs()
		if err != nil {
			return Money{}, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		for _, l := range legs {
			if l.AccountID == accountID {
				bal += l.Delta
			}
		}
	}
	return Money{Cents: bal}, nil
}
