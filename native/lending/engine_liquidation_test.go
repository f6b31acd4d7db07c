package lending

import (
	"errors"
	"math/big"
	"testing"

	"lendledger/crypto"
)

func TestLiquidateReducesDebtAndCollateral(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	borrower := makeAddress(crypto.AccountPrefix, 0x01)
	liquidator := makeAddress(crypto.AccountPrefix, 0x02)
	engine, state := newTestEngine(t, admin)

	if err := engine.AddCollateral(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if err := engine.Borrow(borrower, big.NewInt(50)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := engine.RemoveCollateral(borrower, big.NewInt(50)); err != nil {
		t.Fatalf("remove collateral: %v", err)
	}

	// Any caller may liquidate; no admin involvement.
	if err := engine.Liquidate(liquidator, borrower, big.NewInt(50)); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	position := state.positions[state.key(borrower)]
	if position.Debt.Sign() != 0 {
		t.Fatalf("expected debt cleared, got %s", position.Debt)
	}
	if position.Collateral.Sign() != 0 {
		t.Fatalf("expected collateral cleared, got %s", position.Collateral)
	}
	if state.ledger.TotalBorrow.Sign() != 0 {
		t.Fatalf("expected total borrow cleared, got %s", state.ledger.TotalBorrow)
	}

	// A second liquidation finds no debt left.
	if err := engine.Liquidate(liquidator, borrower, big.NewInt(50)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance on repeat liquidation, got %v", err)
	}
}

func TestLiquidateChecksDebtBeforeCollateral(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	borrower := makeAddress(crypto.AccountPrefix, 0x01)
	liquidator := makeAddress(crypto.AccountPrefix, 0x02)
	engine, state := newTestEngine(t, admin)

	state.positions[state.key(borrower)] = &Position{
		Address:    borrower,
		Balance:    big.NewInt(0),
		Debt:       big.NewInt(10),
		Collateral: big.NewInt(10),
	}
	state.ledger.TotalBorrow = big.NewInt(10)

	// Debt shortfall wins even though collateral is short too.
	if err := engine.Liquidate(liquidator, borrower, big.NewInt(20)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// With debt covering the amount, the collateral check fires.
	state.positions[state.key(borrower)].Debt = big.NewInt(20)
	state.ledger.TotalBorrow = big.NewInt(20)
	if err := engine.Liquidate(liquidator, borrower, big.NewInt(20)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestLiquidateRejectionLeavesStateUntouched(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	borrower := makeAddress(crypto.AccountPrefix, 0x01)
	liquidator := makeAddress(crypto.AccountPrefix, 0x02)
	engine, state := newTestEngine(t, admin)

	state.positions[state.key(borrower)] = &Position{
		Address:    borrower,
		Balance:    big.NewInt(0),
		Debt:       big.NewInt(30),
		Collateral: big.NewInt(5),
	}
	state.ledger.TotalBorrow = big.NewInt(30)

	ledger, positions := snapshot(state)
	if err := engine.Liquidate(liquidator, borrower, big.NewInt(30)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	requireUnchanged(t, state, ledger, positions)
}
