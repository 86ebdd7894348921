package tiling

import "github.com/pkg/errors"

// Host-side failures. They are reported before any core runs; once a plan is
// accepted the engine assumes it is valid.
var (
	ErrInvalidPlan         = errors.New("invalid tiling plan")
	ErrInvalidShape        = errors.New("invalid shape")
	ErrUnsupportedType     = errors.New("unsupported element type")
	ErrUnsupportedStrategy = errors.New("strategy not supported for this operator")
	ErrBufferTooSmall      = errors.New("local buffer too small for one element row")
	ErrStrategyNotFit      = errors.New("requested strategy does not fit the local buffer")
	ErrInvalidMagic        = errors.New("invalid tiling blob magic")
	ErrUnsupportedVersion  = errors.New("unsupported tiling blob version")
	ErrChecksumMismatch    = errors.New("tiling blob checksum mismatch")
	ErrTruncated           = errors.New("tiling blob truncated")
)
