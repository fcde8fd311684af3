package types

import "errors"

// Sentinel validation errors shared by Bar and BarSeries. These correspond to
// the DataError::Validation kind in the error taxonomy; callers wrap them
// with fmt.Errorf for context rather than constructing new sentinels.
var (
	ErrInvalidBar  = errors.New("invalid bar")
	ErrSeriesOrder = errors.New("bar series out of order")
)
