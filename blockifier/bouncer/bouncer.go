package bouncer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
)

// MessageHeaderLength is the number of felts preceding the payload of every
// L2->L1 message in the messages segment.
const MessageHeaderLength = 5

var (
	ErrBlockFull           = errors.New("block is full")
	ErrTransactionTooLarge = errors.New("transaction exceeds block capacity")
)

// BouncerWeights are the block resources a transaction consumes.
type BouncerWeights struct {
	NTxs                 uint64 `json:"n_txs" mapstructure:"n-txs"`
	NEvents              uint64 `json:"n_events" mapstructure:"n-events"`
	MessageSegmentLength uint64 `json:"message_segment_length" mapstructure:"message-segment-length"`
	StateDiffSize        uint64 `json:"state_diff_size" mapstructure:"state-diff-size"`
	NClassHashes         uint64 `json:"n_class_hashes" mapstructure:"n-class-hashes"`
}

// WeightsOf returns the weights of a single transaction with the given summary.
func WeightsOf(summary *execution.ExecutionSummary) BouncerWeights {
	return BouncerWeights{
		NTxs:                 1,
		NEvents:              summary.EventSummary.NEvents,
		MessageSegmentLength: uint64(summary.MessagesSegmentLength(MessageHeaderLength)),
		StateDiffSize:        uint64(len(summary.VisitedStorageEntries)),
		NClassHashes:         uint64(len(summary.ExecutedClassHashes)),
	}
}

func (w BouncerWeights) Add(other BouncerWeights) BouncerWeights {
	return BouncerWeights{
		NTxs:                 w.NTxs + other.NTxs,
		NEvents:              w.NEvents + other.NEvents,
		MessageSegmentLength: w.MessageSegmentLength + other.MessageSegmentLength,
		StateDiffSize:        w.StateDiffSize + other.StateDiffSize,
		NClassHashes:         w.NClassHashes + other.NClassHashes,
	}
}

// FitsIn reports whether every weight of w is within capacity.
func (w BouncerWeights) FitsIn(capacity BouncerWeights) bool {
	return w.NTxs <= capacity.NTxs &&
		w.NEvents <= capacity.NEvents &&
		w.MessageSegmentLength <= capacity.MessageSegmentLength &&
		w.StateDiffSize <= capacity.StateDiffSize &&
		w.NClassHashes <= capacity.NClassHashes
}

func (w BouncerWeights) String() string {
	return fmt.Sprintf("txs=%d events=%d message_segment=%d state_diff=%d class_hashes=%d",
		w.NTxs, w.NEvents, w.MessageSegmentLength, w.StateDiffSize, w.NClassHashes)
}

type BouncerConfig struct {
	BlockMaxCapacity BouncerWeights `mapstructure:"block-max-capacity"`
}

func DefaultConfig() BouncerConfig {
	return BouncerConfig{
		BlockMaxCapacity: BouncerWeights{
			NTxs:                 5000,
			NEvents:              5000,
			MessageSegmentLength: 3750,
			StateDiffSize:        20000,
			NClassHashes:         1000,
		},
	}
}

// Bouncer tracks the resources used by the transactions admitted to a block so far.
type Bouncer struct {
	mu      sync.Mutex
	config  BouncerConfig
	used    BouncerWeights
	summary execution.ExecutionSummary
}

func New(config BouncerConfig) *Bouncer {
	return &Bouncer{
		config:  config,
		summary: execution.NewExecutionSummary(),
	}
}

// TryUpdate admits a transaction with the given summary if the block has room for it.
// It returns ErrTransactionTooLarge when the transaction alone exceeds the block capacity
// and ErrBlockFull when it only fails to fit next to the transactions already admitted.
func (b *Bouncer) TryUpdate(summary *execution.ExecutionSummary) error {
	weights := WeightsOf(summary)
	if !weights.FitsIn(b.config.BlockMaxCapacity) {
		return fmt.Errorf("%w: %s", ErrTransactionTooLarge, weights)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.used.Add(weights)
	if !next.FitsIn(b.config.BlockMaxCapacity) {
		return ErrBlockFull
	}
	b.used = next
	b.summary.Add(*summary)
	return nil
}

func (b *Bouncer) Used() BouncerWeights {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Summary returns the accumulated summary of every admitted transaction.
func (b *Bouncer) Summary() execution.ExecutionSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	summary := execution.NewExecutionSummary()
	summary.Add(b.summary)
	return summary
}
