package marketdata

import "errors"

// Error taxonomy for the External Data Fetcher.
var (
	// ErrVendor is terminal, non-retriable: the vendor rejected the request
	// outright (e.g. unknown symbol).
	ErrVendor = errors.New("fetch: vendor error")

	// ErrRateLimited and ErrTransport both trigger retry with exponential
	// backoff up to Config.RetryAttempts before surfacing.
	ErrRateLimited = errors.New("fetch: rate limited")
	ErrTransport   = errors.New("fetch: transport error")

	// ErrDailyLimit is terminal for the rest of the calendar day.
	ErrDailyLimit = errors.New("fetch: daily quota exhausted")
)
