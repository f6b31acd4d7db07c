package lending

import (
	"math/big"

	"lendledger/crypto"
)

// Ledger captures the protocol-wide accounting state. Amount values are
// expressed as big integers so arithmetic never wraps silently.
type Ledger struct {
	// Admin is the account authorised to perform privileged transitions. It
	// is recorded once at initialisation.
	Admin crypto.Address
	// InterestRateModel references the interest rate model collaborator. The
	// reference is stored and replaceable but accrual currently applies a
	// fixed rate; see DESIGN.md.
	InterestRateModel crypto.Address
	// UnderlyingAsset references the single fungible asset the protocol
	// manages.
	UnderlyingAsset crypto.Address
	// Paused rejects every non-privileged transition while set.
	Paused bool
	// TotalSupply is the sum of all deposited balances.
	TotalSupply *big.Int
	// TotalBorrow is the sum of all outstanding debts.
	TotalBorrow *big.Int
}

// Clone returns a deep copy of the ledger aggregate.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := &Ledger{
		Admin:             l.Admin,
		InterestRateModel: l.InterestRateModel,
		UnderlyingAsset:   l.UnderlyingAsset,
		Paused:            l.Paused,
	}
	if l.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(l.TotalSupply)
	}
	if l.TotalBorrow != nil {
		clone.TotalBorrow = new(big.Int).Set(l.TotalBorrow)
	}
	return clone
}

// Position maintains the deposited balance, outstanding debt, and pledged
// collateral for an individual account. An absent position reads as zero.
type Position struct {
	// Address is the account the position belongs to.
	Address crypto.Address
	// Balance is the amount the account has deposited.
	Balance *big.Int
	// Debt is the amount the account owes.
	Debt *big.Int
	// Collateral is the amount the account has pledged against borrowing.
	Collateral *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address}
	if p.Balance != nil {
		clone.Balance = new(big.Int).Set(p.Balance)
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	return clone
}
