package domain

import "errors"

var (
	// ErrValidation marks a malformed domain. Callers drop it silently.
	ErrValidation = errors.New("invalid domain")
	// ErrNavigationTimeout means active navigation hit its deadline.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrNavigation covers DNS, TLS and connection failures during navigation.
	ErrNavigation = errors.New("navigation failed")
	// ErrEmptySource is returned when an aggregator page yields zero links.
	ErrEmptySource = errors.New("aggregator yielded no links")
	// ErrConfiguration is fatal and aborts the run before any crawling.
	ErrConfiguration = errors.New("invalid configuration")
)
