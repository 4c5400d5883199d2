package models

import (
	"encoding/json"
	"math/big"
	"time"
)

// KeyPair is one generated account. Immutable once created.
type KeyPair struct {
	No         int    `json:"no"`
	Address    string `json:"address"`
	PrivateKey string `json:"-"`
}

// RecipientRecord is one row of a recipient list. No is passed through untouched.
type RecipientRecord struct {
	No      string
	Address string
}

// Outcome is the result of a single transfer: either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the hash of an included transfer with status 1.
type Success struct {
	TxHash string
}

// Failure carries the reason a transfer did not succeed.
type Failure struct {
	Reason string
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TransferOutcome records what happened for one recipient.
type TransferOutcome struct {
	Recipient RecipientRecord
	Amount    string
	Result    Outcome
}

func (o TransferOutcome) Status() string {
	if _, ok := o.Result.(Success); ok {
		return StatusSuccess
	}
	return StatusFailed
}

// TxHash is non-empty iff the transfer succeeded.
func (o TransferOutcome) TxHash() string {
	if s, ok := o.Result.(Success); ok {
		return s.TxHash
	}
	return ""
}

// Error is non-empty iff the transfer failed.
func (o TransferOutcome) Error() string {
	if f, ok := o.Result.(Failure); ok {
		return f.Reason
	}
	return ""
}

// DistributionSummary is the result of one distribution run.
type DistributionSummary struct {
	Total              int               `json:"total"`
	Succeeded          int               `json:"successful"`
	Failed             int               `json:"failed"`
	AmountPerRecipient string            `json:"amount_per_recipient"`
	TotalAmount        string            `json:"total_amount"` // Succeeded × AmountPerRecipient, in whole coins
	TotalWei           *big.Int          `json:"total_wei"`    // same, in the smallest unit
	Results            []TransferOutcome `json:"results"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
}

// FailedResults returns the failed outcomes in input order.
func (s DistributionSummary) FailedResults() []TransferOutcome {
	var failed []TransferOutcome
	for _, r := range s.Results {
		if r.Status() == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// WalletBalanceSnapshot is a point-in-time read of one wallet. Err is set when any read failed,
// in which case the balances read before the failure are left nil.
type WalletBalanceSnapshot struct {
	Address string
	Native  *big.Float
	TokenA  *big.Float
	TokenB  *big.Float
	Err     error
}

// BalanceTotals sums every successfully read wallet.
type BalanceTotals struct {
	Native *big.Float `json:"native"`
	TokenA *big.Float `json:"token_a"`
	TokenB *big.Float `json:"token_b"`
}

// BalanceReport is the result of one balance check.
type BalanceReport struct {
	Snapshots []WalletBalanceSnapshot `json:"wallets"`
	Invalid   []string                `json:"invalid,omitempty"`
	Totals    BalanceTotals           `json:"totals"`
	Checked   int                     `json:"checked"`
	Failed    int                     `json:"failed"`
	TokenA    string                  `json:"token_a_symbol"`
	TokenB    string                  `json:"token_b_symbol"`
	Native    string                  `json:"native_symbol"`
	CheckedAt time.Time               `json:"checked_at"`
}

// TokenMetadata contains the result of a token metadata fetch.
type TokenMetadata struct {
	Address  string
	Symbol   string
	Decimals int
	Err      error
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	ChainID int64
	Err     error
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok" or "error"
	ChainID   int64  `json:"chain_id,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TokenResult holds check results for a configured token.
type TokenResult struct {
	Address        string `json:"address"`
	ConfigSymbol   string `json:"config_symbol"`
	ObservedSymbol string `json:"observed_symbol,omitempty"`
	Decimals       int    `json:"decimals,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CheckReport holds the results of the configuration check.
type CheckReport struct {
	ConfigPath      string        `json:"config_path"`
	ValidStructure  bool          `json:"valid_structure"`
	StructureErrors []string      `json:"structure_errors,omitempty"`
	Chain           string        `json:"chain"`
	ConfigChainID   int64         `json:"config_chain_id"`
	RPCs            []RPCResult   `json:"rpcs"`
	Tokens          []TokenResult `json:"tokens,omitempty"`
	Inconsistent    bool          `json:"inconsistent"`
}

func (o TransferOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		No      string `json:"no"`
		Address string `json:"address"`
		Status  string `json:"status"`
		TxHash  string `json:"tx_hash,omitempty"`
		Amount  string `json:"amount"`
		Error   string `json:"error,omitempty"`
	}{o.Recipient.No, o.Recipient.Address, o.Status(), o.TxHash(), o.Amount, o.Error()})
}

func (s WalletBalanceSnapshot) MarshalJSON() ([]byte, error) {
	out := struct {
		Address string     `json:"address"`
		Native  *big.Float `json:"native,omitempty"`
		TokenA  *big.Float `json:"token_a,omitempty"`
		TokenB  *big.Float `json:"token_b,omitempty"`
		Error   string     `json:"error,omitempty"`
	}{Address: s.Address, Native: s.Native, TokenA: s.TokenA, TokenB: s.TokenB}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}
