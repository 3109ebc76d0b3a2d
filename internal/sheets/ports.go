package sheets

import (
	"context"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// Ports for outbound adapters.
type (
	// MirrorWriter appends a posted transaction to an external mirror,
	// such as a spreadsheet kept for manual review.
	MirrorWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)
