package marketdata

import "time"

// Config controls rate limits, retry policy, and vendor credentials for the
// External Data Fetcher. Both a free-tier and premium-tier preset are
// available as configuration rather than hard-coding one vendor tier.
type Config struct {
	BaseURL      string
	APIKey       string
	PerMinute    int
	PerDay       int
	RetryAttempts int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
}

// PremiumTierConfig returns the premium vendor tier: 150 requests/minute,
// 100000/day, 400ms base retry delay.
func PremiumTierConfig(apiKey string) Config {
	return Config{
		BaseURL:        "https://www.alphavantage.co/query",
		APIKey:         apiKey,
		PerMinute:      150,
		PerDay:         100000,
		RetryAttempts:  3,
		RetryBaseDelay: 400 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

// FreeTierConfig returns the free vendor tier: 5 requests/minute, 500/day,
// 1000ms base retry delay.
func FreeTierConfig(apiKey string) Config {
	return Config{
		BaseURL:        "https://www.alphavantage.co/query",
		APIKey:         apiKey,
		PerMinute:      5,
		PerDay:         500,
		RetryAttempts:  3,
		RetryBaseDelay: 1000 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}
