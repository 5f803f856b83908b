package models

import "time"

// SignatureInfo is one entry from a paginated signature listing,
// newest first.
type SignatureInfo struct {
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot,omitempty"`
	BlockTime time.Time `json:"block_time"`
	Err       string    `json:"err,omitempty"`
}

// VectorGuess is one suspected attack vector on a transaction, with the
// collaborator's confidence level.
type VectorGuess struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// TransactionAnalysis is the per-transaction record produced by the
// transaction-analysis collaborator.
type TransactionAnalysis struct {
	Signature  string        `json:"signature"`
	Timestamp  time.Time     `json:"timestamp"`
	Program    string        `json:"program"`
	Success    bool          `json:"success"`
	Suspicious bool          `json:"suspicious"`
	Vectors    []VectorGuess `json:"vectors,omitempty"`
	Accounts   []string      `json:"accounts,omitempty"`
	Logs       []string      `json:"logs,omitempty"`
	Err        string        `json:"err,omitempty"`
}
