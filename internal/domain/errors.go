package domain

import "errors"

// Sentinel errors for the simulation engine.
// Every failing operation leaves its receiver untouched; callers match with errors.Is
// and the HTTP layer maps them to status codes.
var (
	// Instrument level
	ErrDuplicateSymbol     = errors.New("instrument with same symbol already exists")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidPriceHistory = errors.New("invalid price history")
	ErrInvalidInstrument   = errors.New("invalid instrument")
	ErrNoMarketData        = errors.New("no market data")
	ErrNotRealBacked       = errors.New("instrument is not backed by real market data")
	ErrFeedUnavailable     = errors.New("market data feed unavailable")

	// Market level
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrDuplicateInstrument = errors.New("duplicate instrument")
	ErrDuplicateMarketName = errors.New("market with same name already exists")
	ErrUnknownMarket       = errors.New("market not found")
	ErrAlreadyRegistered   = errors.New("instrument already registered in market")
	ErrNotFound            = errors.New("instrument not found in market")
	ErrAlreadyBankrupt     = errors.New("instrument already bankrupt")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrInvalidVolatility   = errors.New("volatility must be between 0 and 1")

	// Ledger level
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNotOwned             = errors.New("instrument not owned")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidCapital       = errors.New("capital must not be negative")
	ErrInvalidInvestor      = errors.New("invalid investor")
	ErrNoTransactions       = errors.New("no transactions")
	ErrUnknownStrategy      = errors.New("unknown investor strategy")
	ErrUnknownTradeKind     = errors.New("unknown trade kind")
	ErrDuplicateInvestor    = errors.New("investor with same name already exists")
	ErrUnknownInvestor      = errors.New("investor not found")

	// Recommendation level
	ErrNoAffordableInstrument = errors.New("no affordable instrument")
)
