package batcher

import (
	"fmt"
	"time"

	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/mempool"
)

type (
	ProposalID uint64
	Height     uint64
)

type ExecutedTransaction = mempool.ExecutedTransaction

type BlockInfo struct {
	Timestamp        uint64    `json:"timestamp" cbor:"1,keyasint" validate:"required"`
	SequencerAddress felt.Felt `json:"sequencer_address" cbor:"2,keyasint" validate:"required"`
	StarknetVersion  string    `json:"starknet_version" cbor:"3,keyasint" validate:"required,starknet_version"`
}

type BuildProposalInput struct {
	ProposalID ProposalID `json:"proposal_id" cbor:"1,keyasint"`
	Height     Height     `json:"height" cbor:"2,keyasint"`
	// Deadline is when the proposal must stop taking transactions.
	Deadline  time.Time `json:"deadline" cbor:"3,keyasint"`
	BlockInfo BlockInfo `json:"block_info" cbor:"4,keyasint"`
}

type GetStreamContentInput struct {
	ProposalID ProposalID `json:"proposal_id" cbor:"1,keyasint"`
	// Offset is the number of transactions of the proposal the caller already received.
	// Asking for the same offset again returns the same transactions.
	Offset uint64 `json:"offset" cbor:"2,keyasint"`
}

type DecisionReachedInput struct {
	ProposalID ProposalID `json:"proposal_id" cbor:"1,keyasint"`
}

type ProposalStatus uint8

const (
	// ProposalDeadlineReached means the proposal took transactions until its deadline.
	ProposalDeadlineReached ProposalStatus = iota + 1
	// ProposalBlockFull means the bouncer rejected a transaction because the block was full.
	ProposalBlockFull
	// ProposalAborted means the proposal was stopped before completion.
	ProposalAborted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalDeadlineReached:
		return "DEADLINE_REACHED"
	case ProposalBlockFull:
		return "BLOCK_FULL"
	case ProposalAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProposalStatus) UnmarshalText(text []byte) error {
	for _, status := range []ProposalStatus{ProposalDeadlineReached, ProposalBlockFull, ProposalAborted} {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown proposal status %q", text)
}

// ProposalFinished is the last item of a proposal stream.
type ProposalFinished struct {
	Status  ProposalStatus             `json:"status" cbor:"1,keyasint"`
	NTxs    uint64                     `json:"n_txs" cbor:"2,keyasint"`
	Summary execution.ExecutionSummary `json:"summary" cbor:"3,keyasint"`
	// ProposalCommitment is the Pedersen array hash of the transaction hashes of the proposal.
	ProposalCommitment felt.Felt `json:"proposal_commitment" cbor:"4,keyasint"`
	// Charges sums the receipts of the proposal's transactions.
	Charges transaction.Charges `json:"charges" cbor:"5,keyasint"`
}

// StreamContent holds either a chunk of transactions or the Finished marker, never both.
type StreamContent struct {
	Txs      []ExecutedTransaction `json:"txs,omitempty" cbor:"1,keyasint,omitempty"`
	Finished *ProposalFinished     `json:"finished,omitempty" cbor:"2,keyasint,omitempty"`
}

func (c *StreamContent) IsFinished() bool {
	return c.Finished != nil
}

// DecidedBlock is what the batcher persists once consensus decided on a proposal.
type DecidedBlock struct {
	Height             Height                     `json:"height" cbor:"1,keyasint"`
	ProposalID         ProposalID                 `json:"proposal_id" cbor:"2,keyasint"`
	TxHashes           []felt.Felt                `json:"transaction_hashes" cbor:"3,keyasint"`
	Summary            execution.ExecutionSummary `json:"summary" cbor:"4,keyasint"`
	ProposalCommitment felt.Felt                  `json:"proposal_commitment" cbor:"5,keyasint"`
	BlockInfo          BlockInfo                  `json:"block_info" cbor:"6,keyasint"`
	Charges            transaction.Charges        `json:"charges" cbor:"7,keyasint"`
}
