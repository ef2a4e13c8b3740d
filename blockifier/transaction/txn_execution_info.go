package transaction

import (
	"iter"

	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	conciter "github.com/sourcegraph/conc/iter"
)

// RevertError is the reason a transaction was reverted; empty when it was not.
type RevertError string

// TransactionExecutionInfo contains information about a transaction's execution.
type TransactionExecutionInfo struct {
	// ValidateCallInfo is the transaction validation call info; nil for L1Handler
	// or when validation was skipped.
	ValidateCallInfo *execution.CallInfo `json:"validate_call_info,omitempty"`
	// ExecuteCallInfo is the transaction execution call info; nil for Declare
	// or when execution reverted before running.
	ExecuteCallInfo *execution.CallInfo `json:"execute_call_info,omitempty"`
	// FeeTransferCallInfo is the fee transfer call info; nil for L1Handler
	// or when no fee was charged.
	FeeTransferCallInfo *execution.CallInfo `json:"fee_transfer_call_info,omitempty"`
	// RevertError contains error information if the transaction was reverted.
	RevertError RevertError `json:"revert_error,omitempty"`
	// Receipt is the receipt of the transaction.
	Receipt TransactionReceipt `json:"receipt"`
}

// NonOptionalCallInfos yields the call infos present in the transaction, always in the
// order validate, execute, fee transfer.
func (t *TransactionExecutionInfo) NonOptionalCallInfos() iter.Seq[*execution.CallInfo] {
	return func(yield func(*execution.CallInfo) bool) {
		for _, callInfo := range []*execution.CallInfo{
			t.ValidateCallInfo,
			t.ExecuteCallInfo,
			t.FeeTransferCallInfo,
		} {
			if callInfo == nil {
				continue
			}
			if !yield(callInfo) {
				return
			}
		}
	}
}

// Summarize folds the call infos of the transaction into an ExecutionSummary.
// The call infos are not modified, so calling it again yields an equal summary.
func (t *TransactionExecutionInfo) Summarize() execution.ExecutionSummary {
	return execution.SummarizeMany(t.NonOptionalCallInfos())
}

func (t *TransactionExecutionInfo) IsReverted() bool {
	return t.RevertError != ""
}

// SummarizeAll summarizes each transaction concurrently. The i-th summary belongs to infos[i].
func SummarizeAll(infos []*TransactionExecutionInfo) []execution.ExecutionSummary {
	return conciter.Map(infos, func(info **TransactionExecutionInfo) execution.ExecutionSummary {
		return (*info).Summarize()
	})
}
