package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTxStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TxStatus
		ok       bool
	}{
		{TxPending, TxCompleted, true},
		{TxPending, TxFailed, true},
		{TxCompleted, TxFailed, false},
		{TxCompleted, TxPending, false},
		{TxFailed, TxCompleted, false},
		{TxPending, TxPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Fatalf("%s -> %s = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTxStatusTerminal(t *testing.T) {
	if TxPending.Terminal() {
		t.Fatal("pending reported terminal")
	}
	if !TxCompleted.Terminal() || !TxFailed.Terminal() {
		t.Fatal("terminal status not reported")
	}
}

func TestModelCost(t *testing.T) {
	m := Model{
		InputPrice:  decimal.RequireFromString("0.000003"),
		OutputPrice: decimal.RequireFromString("0.000012"),
	}
	got := m.Cost(1000, 500)
	want := decimal.RequireFromString("0.009")
	if !got.Equal(want) {
		t.Fatalf("cost = %s, want %s", got, want)
	}
}

func TestModelCostZeroTokens(t *testing.T) {
	m := Model{
		InputPrice:  decimal.RequireFromString("0.01"),
		OutputPrice: decimal.RequireFromString("0.02"),
	}
	if !m.Cost(0, 0).IsZero() {
		t.Fatal("zero tokens should cost nothing")
	}
}

func TestUserHasName(t *testing.T) {
	if (User{Firstname: "John"}).HasName() {
		t.Fatal("missing lastname should fail")
	}
	if !(User{Firstname: "John", Lastname: "Smith"}).HasName() {
		t.Fatal("full name should pass")
	}
}
