package lending

import (
	"math/big"

	"lendledger/core/types"
	"lendledger/crypto"
)

const (
	EventTypeInitialized       = "lending.initialized"
	EventTypeDeposit           = "lending.deposit"
	EventTypeWithdraw          = "lending.withdraw"
	EventTypeBorrow            = "lending.borrow"
	EventTypeRepay             = "lending.repay"
	EventTypeLiquidate         = "lending.liquidate"
	EventTypeInterestAccrued   = "lending.interest_accrued"
	EventTypeRateModelUpdated  = "lending.rate_model_updated"
	EventTypeCollateralAdded   = "lending.collateral_added"
	EventTypeCollateralRemoved = "lending.collateral_removed"
	EventTypePaused            = "lending.paused"
	EventTypeUnpaused          = "lending.unpaused"
)

// NewInitializedEvent returns the canonical payload emitted once when the
// ledger is created.
func NewInitializedEvent(model, asset crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"interestRateModel": model.String(),
			"underlyingAsset":   asset.String(),
		},
	}
}

// NewDepositEvent returns the payload emitted when assets are deposited.
func NewDepositEvent(from crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeDeposit, "from", from, amount)
}

// NewWithdrawEvent returns the payload emitted when assets are withdrawn.
func NewWithdrawEvent(to crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeWithdraw, "to", to, amount)
}

// NewBorrowEvent returns the payload emitted when assets are borrowed.
func NewBorrowEvent(borrower crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeBorrow, "borrower", borrower, amount)
}

// NewRepayEvent returns the payload emitted when debt is repaid.
func NewRepayEvent(borrower crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeRepay, "borrower", borrower, amount)
}

// NewLiquidateEvent returns the payload emitted when a borrower position is
// liquidated by a third party.
func NewLiquidateEvent(liquidator, borrower crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidate,
		Attributes: map[string]string{
			"liquidator": liquidator.String(),
			"borrower":   borrower.String(),
			"amount":     amountString(amount),
		},
	}
}

// NewInterestAccruedEvent returns the payload emitted after interest accrual.
func NewInterestAccruedEvent(amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeInterestAccrued,
		Attributes: map[string]string{
			"amount": amountString(amount),
		},
	}
}

// NewRateModelUpdatedEvent returns the payload emitted when the admin swaps
// the interest rate model reference.
func NewRateModelUpdatedEvent(model crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeRateModelUpdated,
		Attributes: map[string]string{
			"newModel": model.String(),
		},
	}
}

// NewCollateralAddedEvent returns the payload emitted when collateral is
// pledged.
func NewCollateralAddedEvent(user crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeCollateralAdded, "user", user, amount)
}

// NewCollateralRemovedEvent returns the payload emitted when collateral is
// released.
func NewCollateralRemovedEvent(user crypto.Address, amount *big.Int) *types.Event {
	return accountAmountEvent(EventTypeCollateralRemoved, "user", user, amount)
}

// NewPausedEvent returns the payload emitted when the admin pauses the ledger.
func NewPausedEvent() *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: map[string]string{}}
}

// NewUnpausedEvent returns the payload emitted when the admin unpauses the
// ledger.
func NewUnpausedEvent() *types.Event {
	return &types.Event{Type: EventTypeUnpaused, Attributes: map[string]string{}}
}

func accountAmountEvent(eventType, key string, addr crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			key:      addr.String(),
			"amount": amountString(amount),
		},
	}
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
