package lending

import "errors"

var (
	// ErrNotAuthorized is returned when a caller other than the admin invokes
	// a privileged transition.
	ErrNotAuthorized = errors.New("lending engine: caller is not the admin")
	// ErrInsufficientBalance is returned when a balance or outstanding debt is
	// smaller than the requested amount.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientLiquidity is reserved for protocol-wide liquidity
	// shortfalls. No transition raises it today; see DESIGN.md.
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	// ErrInsufficientCollateral is returned when pledged collateral cannot
	// cover a borrow, a collateral removal, or a liquidation.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrContractPaused gates every user transition while the admin has the
	// ledger paused.
	ErrContractPaused = errors.New("lending engine: contract paused")
	// ErrInvalidAmount rejects nil or negative amounts before any state is
	// touched.
	ErrInvalidAmount = errors.New("lending engine: amount must be a non-negative integer")
	// ErrNotInitialized is returned when a transition runs before the ledger
	// has been created.
	ErrNotInitialized = errors.New("lending engine: ledger not initialised")
)

var (
	errNilState           = errors.New("lending engine: state not configured")
	errAlreadyInitialized = errors.New("lending engine: ledger already initialised")
)
