package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chainaudit/internal/catalog"
	"chainaudit/pkg/models"
)

// RPCConfig configures the JSON-RPC chain provider.
type RPCConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// RPCProvider implements Provider over a JSON-RPC node endpoint. The
// per-transaction analysis is derived from transaction logs using the
// vulnerability-pattern catalog indicators.
type RPCProvider struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewRPCProvider creates a JSON-RPC provider.
func NewRPCProvider(cfg RPCConfig) (*RPCProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rpc URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RPCProvider{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type signatureEntry struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
}

type transactionResult struct {
	Meta *struct {
		Err         json.RawMessage `json:"err"`
		LogMessages []string        `json:"logMessages"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// Signatures lists signatures for a program address, newest first,
// paginating backward from the before cursor.
func (p *RPCProvider) Signatures(ctx context.Context, program, before string, limit int) ([]models.SignatureInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}

	var entries []signatureEntry
	if err := p.call(ctx, "getSignaturesForAddress", []interface{}{program, opts}, &entries); err != nil {
		return nil, fmt.Errorf("fetch signatures: %w", err)
	}

	out := make([]models.SignatureInfo, 0, len(entries))
	for _, e := range entries {
		info := models.SignatureInfo{Signature: e.Signature, Slot: e.Slot}
		if e.BlockTime != nil {
			info.BlockTime = time.Unix(*e.BlockTime, 0).UTC()
		}
		if len(e.Err) > 0 && string(e.Err) != "null" {
			info.Err = string(e.Err)
		}
		out = append(out, info)
	}
	return out, nil
}

// AnalyzeTransaction fetches one transaction and derives its analysis
// record from the log messages and account list.
func (p *RPCProvider) AnalyzeTransaction(ctx context.Context, program string, sig models.SignatureInfo) (*models.TransactionAnalysis, error) {
	params := []interface{}{
		sig.Signature,
		map[string]interface{}{"encoding": "json", "maxSupportedTransactionVersion": 0},
	}
	var tx transactionResult
	if err := p.call(ctx, "getTransaction", params, &tx); err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", sig.Signature, err)
	}

	analysis := &models.TransactionAnalysis{
		Signature: sig.Signature,
		Timestamp: sig.BlockTime,
		Program:   program,
		Success:   true,
	}
	if tx.Meta != nil {
		analysis.Logs = tx.Meta.LogMessages
		if len(tx.Meta.Err) > 0 && string(tx.Meta.Err) != "null" {
			analysis.Success = false
			analysis.Err = string(tx.Meta.Err)
		}
	}
	analysis.Accounts = tx.Transaction.Message.AccountKeys

	for _, pat := range catalog.MatchLogs(analysis.Logs) {
		analysis.Vectors = append(analysis.Vectors, models.VectorGuess{
			Type:       pat.Pattern,
			Confidence: indicatorConfidence(pat.Severity),
		})
	}
	analysis.Suspicious = len(analysis.Vectors) > 0

	return analysis, nil
}

func (p *RPCProvider) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("rpc request failed with status %s", resp.Status)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil && len(envelope.Result) > 0 && string(envelope.Result) != "null" {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func indicatorConfidence(severity string) float64 {
	switch severity {
	case models.SeverityCritical:
		return 0.9
	case models.SeverityHigh:
		return 0.7
	case models.SeverityMedium:
		return 0.5
	default:
		return 0.3
	}
}
