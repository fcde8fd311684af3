package backtest

import "errors"

var (
	// Configuration errors.
	ErrInvalidCapital  = errors.New("initial capital must be positive")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidSymbol   = errors.New("symbol cannot be empty")
	ErrInvalidInterval = errors.New("interval is not a recognized bar interval")

	// ExecutionError::InsufficientCash — order rejected, recorded on the
	// order's terminal status; never aborts the run.
	ErrInsufficientCash = errors.New("order rejected: insufficient cash")

	// ExecutionError::InvariantViolation — a portfolio invariant broke
	// (e.g. cash went negative despite the rejection above). Fatal: aborts
	// the run and discards results.
	ErrInvariantViolation = errors.New("portfolio invariant violated")
)
