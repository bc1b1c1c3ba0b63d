package models

import "errors"

var (
	// ErrConfiguration covers zero band counts, unsupported numeric kinds and
	// band counts that change between calls.
	ErrConfiguration = errors.New("configuration error")

	// ErrData is returned for malformed or zero-size tiles.
	ErrData = errors.New("data error")

	// ErrUnavailable is returned by dependent features (enhancement,
	// clustering) when their statistics or histogram input is missing.
	ErrUnavailable = errors.New("unavailable")
)
