package lending

import (
	"errors"
	"math/big"
	"testing"

	"lendledger/crypto"
)

type mockEngineState struct {
	ledger    *Ledger
	positions map[string]*Position
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{positions: make(map[string]*Position)}
}

func (m *mockEngineState) key(addr crypto.Address) string {
	return string(addr.Prefix()) + "/" + string(addr.Bytes())
}

func (m *mockEngineState) LedgerGet() (*Ledger, error) {
	return m.ledger.Clone(), nil
}

func (m *mockEngineState) LedgerPut(ledger *Ledger) error {
	m.ledger = ledger.Clone()
	return nil
}

func (m *mockEngineState) PositionGet(addr crypto.Address) (*Position, error) {
	return m.positions[m.key(addr)].Clone(), nil
}

func (m *mockEngineState) PositionPut(position *Position) error {
	m.positions[m.key(position.Address)] = position.Clone()
	return nil
}

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(prefix, buf)
}

func newTestEngine(t *testing.T, admin crypto.Address) (*Engine, *mockEngineState) {
	t.Helper()
	engine := NewEngine()
	state := newMockEngineState()
	engine.SetState(state)
	model := makeAddress(crypto.ContractPrefix, 0x01)
	asset := makeAddress(crypto.ContractPrefix, 0x02)
	if err := engine.Initialize(model, asset, admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return engine, state
}

// checkTotals verifies the ledger totals equal the sums over all positions.
func checkTotals(t *testing.T, state *mockEngineState) {
	t.Helper()
	sumBalances := big.NewInt(0)
	sumDebts := big.NewInt(0)
	for _, position := range state.positions {
		if position.Balance != nil {
			sumBalances.Add(sumBalances, position.Balance)
		}
		if position.Debt != nil {
			sumDebts.Add(sumDebts, position.Debt)
		}
	}
	if state.ledger.TotalSupply.Cmp(sumBalances) != 0 {
		t.Fatalf("total supply %s does not match balance sum %s", state.ledger.TotalSupply, sumBalances)
	}
	if state.ledger.TotalBorrow.Cmp(sumDebts) != 0 {
		t.Fatalf("total borrow %s does not match debt sum %s", state.ledger.TotalBorrow, sumDebts)
	}
}

func TestInitializeRecordsAdminAndZeroTotals(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	engine, state := newTestEngine(t, admin)

	if !state.ledger.Admin.Equal(admin) {
		t.Fatalf("expected creator to become admin")
	}
	if state.ledger.Paused {
		t.Fatalf("expected ledger to start unpaused")
	}
	if state.ledger.TotalSupply.Sign() != 0 || state.ledger.TotalBorrow.Sign() != 0 {
		t.Fatalf("expected zero totals, got supply=%s borrow=%s", state.ledger.TotalSupply, state.ledger.TotalBorrow)
	}
	if err := engine.Initialize(state.ledger.InterestRateModel, state.ledger.UnderlyingAsset, admin); !errors.Is(err, errAlreadyInitialized) {
		t.Fatalf("expected errAlreadyInitialized, got %v", err)
	}
}

func TestDepositCreditsBalanceAndSupply(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	if err := engine.Deposit(account, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	supply, err := engine.TotalSupply()
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected total supply 100, got %s", supply)
	}
	position := state.positions[state.key(account)]
	if position.Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected balance 100, got %s", position.Balance)
	}
	checkTotals(t, state)
}

func TestWithdrawRequiresSufficientBalance(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	if err := engine.Deposit(account, big.NewInt(40)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Withdraw(account, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if balance := state.positions[state.key(account)].Balance; balance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected balance unchanged at 40, got %s", balance)
	}
	if err := engine.Withdraw(account, big.NewInt(40)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	checkTotals(t, state)
}

func TestBorrowBoundAtHalfCollateral(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	if err := engine.Deposit(account, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.AddCollateral(account, big.NewInt(200)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}

	// Exactly collateral/2 succeeds.
	if err := engine.Borrow(account, big.NewInt(100)); err != nil {
		t.Fatalf("borrow at bound: %v", err)
	}
	borrow, err := engine.TotalBorrow()
	if err != nil {
		t.Fatalf("total borrow: %v", err)
	}
	if borrow.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected total borrow 100, got %s", borrow)
	}

	// One past the bound fails and leaves state untouched.
	if err := engine.Borrow(account, big.NewInt(1)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if debt := state.positions[state.key(account)].Debt; debt.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected debt unchanged at 100, got %s", debt)
	}
	checkTotals(t, state)
}

func TestBorrowBoundTruncatesOddCollateral(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, _ := newTestEngine(t, admin)

	if err := engine.AddCollateral(account, big.NewInt(101)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if err := engine.Borrow(account, big.NewInt(51)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral for 51 > 101/2, got %v", err)
	}
	if err := engine.Borrow(account, big.NewInt(50)); err != nil {
		t.Fatalf("borrow at truncated bound: %v", err)
	}
}

func TestRepayReducesDebtAndRejectsOverpayment(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	if err := engine.AddCollateral(account, big.NewInt(200)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if err := engine.Borrow(account, big.NewInt(80)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := engine.Repay(account, big.NewInt(81)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := engine.Repay(account, big.NewInt(80)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if debt := state.positions[state.key(account)].Debt; debt.Sign() != 0 {
		t.Fatalf("expected debt cleared, got %s", debt)
	}
	checkTotals(t, state)
}

func TestRemoveCollateralRequiresSufficientPledge(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	if err := engine.AddCollateral(account, big.NewInt(30)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if err := engine.RemoveCollateral(account, big.NewInt(31)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if err := engine.RemoveCollateral(account, big.NewInt(30)); err != nil {
		t.Fatalf("remove collateral: %v", err)
	}
	if collateral := state.positions[state.key(account)].Collateral; collateral.Sign() != 0 {
		t.Fatalf("expected collateral cleared, got %s", collateral)
	}
}

func TestAccountLiquiditySaturatesAtZero(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	account := makeAddress(crypto.AccountPrefix, 0x01)
	engine, state := newTestEngine(t, admin)

	state.positions[state.key(account)] = &Position{
		Address:    account,
		Balance:    big.NewInt(0),
		Debt:       big.NewInt(75),
		Collateral: big.NewInt(50),
	}

	liquidity, err := engine.AccountLiquidity(account)
	if err != nil {
		t.Fatalf("account liquidity: %v", err)
	}
	if liquidity.Sign() != 0 {
		t.Fatalf("expected zero liquidity for underwater position, got %s", liquidity)
	}

	state.positions[state.key(account)].Collateral = big.NewInt(120)
	liquidity, err = engine.AccountLiquidity(account)
	if err != nil {
		t.Fatalf("account liquidity: %v", err)
	}
	if liquidity.Cmp(big.NewInt(45)) != 0 {
		t.Fatalf("expected liquidity 45, got %s", liquidity)
	}
}

func TestAccountLiquidityForUnknownAccountIsZero(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	engine, _ := newTestEngine(t, admin)

	liquidity, err := engine.AccountLiquidity(makeAddress(crypto.AccountPrefix, 0x42))
	if err != nil {
		t.Fatalf("account liquidity: %v", err)
	}
	if liquidity.Sign() != 0 {
		t.Fatalf("expected zero liquidity for untouched account, got %s", liquidity)
	}
}

func TestInvariantsHoldAcrossMixedSequence(t *testing.T) {
	admin := makeAddress(crypto.AccountPrefix, 0xAA)
	alice := makeAddress(crypto.AccountPrefix, 0x01)
	bob := makeAddress(crypto.AccountPrefix, 0x02)
	engine, state := newTestEngine(t, admin)

	steps := []func() error{
		func() error { return engine.Deposit(alice, big.NewInt(500)) },
		func() error { return engine.Deposit(bob, big.NewInt(250)) },
		func() error { return engine.AddCollateral(alice, big.NewInt(400)) },
		func() error { return engine.Borrow(alice, big.NewInt(150)) },
		func() error { return engine.AddCollateral(bob, big.NewInt(100)) },
		func() error { return engine.Borrow(bob, big.NewInt(50)) },
		func() error { return engine.Withdraw(bob, big.NewInt(100)) },
		func() error { return engine.Repay(alice, big.NewInt(70)) },
		func() error { return engine.Liquidate(bob, alice, big.NewInt(80)) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		checkTotals(t, state)
	}
}
