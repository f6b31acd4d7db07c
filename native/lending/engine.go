package lending

import (
	"math/big"

	"lendledger/core/events"
	"lendledger/core/types"
	"lendledger/crypto"
)

var (
	collateralFactor = big.NewInt(2)   // borrow limit is collateral / 2
	interestDivisor  = big.NewInt(100) // accrual adds totalBorrow / 100
)

// engineState is the persistence boundary the engine drives. Implementations
// must make reads and writes immediately consistent within one transition.
type engineState interface {
	// LedgerGet returns the singleton ledger aggregate, or nil when the
	// ledger has not been initialised yet.
	LedgerGet() (*Ledger, error)
	LedgerPut(*Ledger) error
	// PositionGet returns the stored position for the address, or nil when
	// the account has never been touched.
	PositionGet(addr crypto.Address) (*Position, error)
	PositionPut(*Position) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Engine is the ledger state machine. Every transition is atomic: all state
// reads happen up front, preconditions are validated, and only then are the
// affected aggregates persisted and exactly one event emitted. The host
// serialises invocations, so the engine carries no locking of its own.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a lending engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: event})
}

// Initialized reports whether the ledger aggregate has been created.
func (e *Engine) Initialized() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	ledger, err := e.state.LedgerGet()
	if err != nil {
		return false, err
	}
	return ledger != nil, nil
}

// Initialize creates the ledger with zero totals, records the caller as the
// protocol admin, and emits the initialisation event. It fails if the ledger
// already exists; the host instantiates the protocol exactly once.
func (e *Engine) Initialize(model, asset, caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	existing, err := e.state.LedgerGet()
	if err != nil {
		return err
	}
	if existing != nil {
		return errAlreadyInitialized
	}
	ledger := &Ledger{
		Admin:             caller,
		InterestRateModel: model,
		UnderlyingAsset:   asset,
		TotalSupply:       big.NewInt(0),
		TotalBorrow:       big.NewInt(0),
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(model, asset))
	return nil
}

// SetInterestRateModel replaces the interest rate model reference. Admin only.
func (e *Engine) SetInterestRateModel(caller, newModel crypto.Address) error {
	ledger, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	ledger.InterestRateModel = newModel
	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(NewRateModelUpdatedEvent(newModel))
	return nil
}

// Reinitialize replaces both collaborator references. Admin only. The source
// contract emits no event for this transition and neither does the engine.
func (e *Engine) Reinitialize(caller, newModel, newAsset crypto.Address) error {
	ledger, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	ledger.InterestRateModel = newModel
	ledger.UnderlyingAsset = newAsset
	return e.state.LedgerPut(ledger)
}

// Pause sets the pause gate. Admin only. Pausing an already paused ledger is
// not rejected and re-emits the event.
func (e *Engine) Pause(caller crypto.Address) error {
	ledger, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	ledger.Paused = true
	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(NewPausedEvent())
	return nil
}

// Unpause clears the pause gate. Admin only.
func (e *Engine) Unpause(caller crypto.Address) error {
	ledger, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	ledger.Paused = false
	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(NewUnpausedEvent())
	return nil
}

// Deposit credits the caller's balance and the total supply.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int) error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}

	position.Balance = new(big.Int).Add(position.Balance, amount)
	ledger.TotalSupply = new(big.Int).Add(ledger.TotalSupply, amount)

	if err := e.persist(ledger, position); err != nil {
		return err
	}
	e.emit(NewDepositEvent(caller, amount))
	return nil
}

// Withdraw debits the caller's balance and the total supply. It fails with
// ErrInsufficientBalance when the balance cannot cover the amount.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int) error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	if position.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	position.Balance = new(big.Int).Sub(position.Balance, amount)
	ledger.TotalSupply = new(big.Int).Sub(ledger.TotalSupply, amount)

	if err := e.persist(ledger, position); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(caller, amount))
	return nil
}

// AddCollateral pledges additional collateral for the caller.
func (e *Engine) AddCollateral(caller crypto.Address, amount *big.Int) error {
	if _, err := e.requireActive(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}

	position.Collateral = new(big.Int).Add(position.Collateral, amount)

	if err := e.state.PositionPut(position); err != nil {
		return err
	}
	e.emit(NewCollateralAddedEvent(caller, amount))
	return nil
}

// RemoveCollateral releases pledged collateral. It fails with
// ErrInsufficientCollateral when the pledge cannot cover the amount. No
// health check follows the release; the borrow bound is enforced only at
// borrow time.
func (e *Engine) RemoveCollateral(caller crypto.Address, amount *big.Int) error {
	if _, err := e.requireActive(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	if position.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}

	position.Collateral = new(big.Int).Sub(position.Collateral, amount)

	if err := e.state.PositionPut(position); err != nil {
		return err
	}
	e.emit(NewCollateralRemovedEvent(caller, amount))
	return nil
}

// Borrow increases the caller's debt and the total borrow, provided the
// projected debt stays within half the pledged collateral.
func (e *Engine) Borrow(caller crypto.Address, amount *big.Int) error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}

	projected := new(big.Int).Add(position.Debt, amount)
	if maxBorrow(position.Collateral).Cmp(projected) < 0 {
		return ErrInsufficientCollateral
	}

	position.Debt = projected
	ledger.TotalBorrow = new(big.Int).Add(ledger.TotalBorrow, amount)

	if err := e.persist(ledger, position); err != nil {
		return err
	}
	e.emit(NewBorrowEvent(caller, amount))
	return nil
}

// Repay reduces the caller's debt and the total borrow. Repaying more than
// is owed fails with ErrInsufficientBalance, mirroring the source contract's
// reuse of the withdrawal error kind; see DESIGN.md.
func (e *Engine) Repay(caller crypto.Address, amount *big.Int) error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	if position.Debt.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	position.Debt = new(big.Int).Sub(position.Debt, amount)
	ledger.TotalBorrow = new(big.Int).Sub(ledger.TotalBorrow, amount)

	if err := e.persist(ledger, position); err != nil {
		return err
	}
	e.emit(NewRepayEvent(caller, amount))
	return nil
}

// Liquidate lets any caller force down a borrower's debt and collateral by
// the same amount. The debt check runs before the collateral check, so a
// position short on both reports ErrInsufficientBalance first.
func (e *Engine) Liquidate(caller, borrower crypto.Address, amount *big.Int) error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	position, err := e.ensurePosition(borrower)
	if err != nil {
		return err
	}
	if position.Debt.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if position.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}

	position.Debt = new(big.Int).Sub(position.Debt, amount)
	position.Collateral = new(big.Int).Sub(position.Collateral, amount)
	ledger.TotalBorrow = new(big.Int).Sub(ledger.TotalBorrow, amount)

	if err := e.persist(ledger, position); err != nil {
		return err
	}
	e.emit(NewLiquidateEvent(caller, borrower, amount))
	return nil
}

// AccrueInterest grows the total borrow by a fixed one percent, truncating.
// The stored interest rate model reference is not consulted; see DESIGN.md.
func (e *Engine) AccrueInterest() error {
	ledger, err := e.requireActive()
	if err != nil {
		return err
	}

	interest := new(big.Int).Quo(ledger.TotalBorrow, interestDivisor)
	ledger.TotalBorrow = new(big.Int).Add(ledger.TotalBorrow, interest)

	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(NewInterestAccruedEvent(interest))
	return nil
}

// AccountLiquidity returns max(0, collateral - debt) for the account. The
// subtraction saturates: a deficit reads as zero.
func (e *Engine) AccountLiquidity(account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	liquidity := new(big.Int).Sub(position.Collateral, position.Debt)
	if liquidity.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return liquidity, nil
}

// Position returns a copy of the stored position for the account. Absent
// accounts read as an all-zero position.
func (e *Engine) Position(account crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// TotalSupply returns the aggregate deposited balance.
func (e *Engine) TotalSupply() (*big.Int, error) {
	ledger, err := e.requireLedger()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(ledger.TotalSupply), nil
}

// TotalBorrow returns the aggregate outstanding debt.
func (e *Engine) TotalBorrow() (*big.Int, error) {
	ledger, err := e.requireLedger()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(ledger.TotalBorrow), nil
}

// Ledger returns a copy of the singleton ledger aggregate.
func (e *Engine) Ledger() (*Ledger, error) {
	ledger, err := e.requireLedger()
	if err != nil {
		return nil, err
	}
	return ledger.Clone(), nil
}

func (e *Engine) requireLedger() (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.state.LedgerGet()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, ErrNotInitialized
	}
	if ledger.TotalSupply == nil {
		ledger.TotalSupply = big.NewInt(0)
	}
	if ledger.TotalBorrow == nil {
		ledger.TotalBorrow = big.NewInt(0)
	}
	return ledger, nil
}

// requireActive loads the ledger and applies the pause gate. This runs before
// any other validation on user transitions.
func (e *Engine) requireActive() (*Ledger, error) {
	ledger, err := e.requireLedger()
	if err != nil {
		return nil, err
	}
	if ledger.Paused {
		return nil, ErrContractPaused
	}
	return ledger, nil
}

// requireAdmin loads the ledger and verifies the caller is the admin.
func (e *Engine) requireAdmin(caller crypto.Address) (*Ledger, error) {
	ledger, err := e.requireLedger()
	if err != nil {
		return nil, err
	}
	if !ledger.Admin.Equal(caller) {
		return nil, ErrNotAuthorized
	}
	return ledger, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	position, err := e.state.PositionGet(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Address: addr}
	}
	if position.Balance == nil {
		position.Balance = big.NewInt(0)
	}
	if position.Debt == nil {
		position.Debt = big.NewInt(0)
	}
	if position.Collateral == nil {
		position.Collateral = big.NewInt(0)
	}
	return position, nil
}

func (e *Engine) persist(ledger *Ledger, position *Position) error {
	if err := e.state.PositionPut(position); err != nil {
		return err
	}
	return e.state.LedgerPut(ledger)
}

func maxBorrow(collateral *big.Int) *big.Int {
	if collateral == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(collateral, collateralFactor)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
