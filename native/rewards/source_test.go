package rewards

import (
	"math/big"
	"testing"
)

func TestDisburseFullWhenFunded(t *testing.T) {
	src := NewSource(big.NewInt(1000))
	paid := src.Disburse(big.NewInt(400))
	if paid.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected full payout, got %s", paid)
	}
	if src.Available().Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected 600 remaining, got %s", src.Available())
	}
}

func TestDisburseClampsToAvailable(t *testing.T) {
	src := NewSource(big.NewInt(150))
	paid := src.Disburse(big.NewInt(400))
	if paid.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected clamped payout of 150, got %s", paid)
	}
	if src.Available().Sign() != 0 {
		t.Fatalf("expected drained source, got %s", src.Available())
	}
	// A drained source keeps degrading to zero rather than failing.
	paid = src.Disburse(big.NewInt(1))
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout from empty source, got %s", paid)
	}
}

func TestFundThenDisburseRoundTrip(t *testing.T) {
	src := NewSource(big.NewInt(75))
	src.Fund(big.NewInt(25))
	if src.Available().Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 after funding, got %s", src.Available())
	}
	paid := src.Disburse(big.NewInt(25))
	if paid.Cmp(big.NewInt(25)) != 0 || src.Available().Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("round trip mismatch: paid %s remaining %s", paid, src.Available())
	}
}

func TestDisburseIgnoresNonPositiveRequests(t *testing.T) {
	src := NewSource(big.NewInt(10))
	if paid := src.Disburse(nil); paid.Sign() != 0 {
		t.Fatalf("nil request paid %s", paid)
	}
	if paid := src.Disburse(big.NewInt(-5)); paid.Sign() != 0 {
		t.Fatalf("negative request paid %s", paid)
	}
	if src.Available().Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance changed: %s", src.Available())
	}
}
