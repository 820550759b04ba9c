package constant

import "time"

type RenderStatus string

const (
	RenderStatusPending    RenderStatus = "pending"
	RenderStatusProcessing RenderStatus = "processing"
	RenderStatusComplete   RenderStatus = "complete"
	RenderStatusFailed     RenderStatus = "failed"
)

func (s RenderStatus) Terminal() bool {
	return s == RenderStatusComplete || s == RenderStatusFailed
}

type Format string

const (
	FormatHorizontal Format = "horizontal"
	FormatVertical   Format = "vertical"
	FormatSquare     Format = "square"
)

// Resolution returns the output dimensions for a format.
func (f Format) Resolution() (int, int) {
	switch f {
	case FormatVertical:
		return 1080, 1920
	case FormatSquare:
		return 1080, 1080
	default:
		return 1920, 1080
	}
}

func (f Format) Valid() bool {
	switch f {
	case FormatHorizontal, FormatVertical, FormatSquare:
		return true
	}
	return false
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	// DefaultConfigId marks a job that renders with inline/default options
	// instead of a stored configuration snapshot.
	DefaultConfigId = "default"

	// MaxLogTailBytes bounds the diagnostic tail kept on a job record.
	MaxLogTailBytes = 2000

	// JobListTTL is the retention window applied by the cache-style store.
	JobListTTL = 72 * time.Hour

	// SpendReasonRender is the ledger reason recorded for a render debit.
	SpendReasonRender = "render"

	DefaultListLimit = 20
)
