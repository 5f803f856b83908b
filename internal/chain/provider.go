// Package chain abstracts the chain-data collaborators: signature
// listings and per-transaction analyses. The analyzer receives a
// Provider explicitly; there is no process-wide default.
package chain

import (
	"context"

	"chainaudit/pkg/models"
)

// Provider supplies transaction signatures and per-transaction analyses
// for one chain endpoint. Signature listings paginate backward in time:
// each call returns entries strictly older than the before cursor.
type Provider interface {
	// Signatures lists up to limit signatures for a program, newest
	// first, older than the before signature (empty = from the tip).
	Signatures(ctx context.Context, program, before string, limit int) ([]models.SignatureInfo, error)

	// AnalyzeTransaction produces the per-transaction analysis record
	// for one signature.
	AnalyzeTransaction(ctx context.Context, program string, sig models.SignatureInfo) (*models.TransactionAnalysis, error)
}
