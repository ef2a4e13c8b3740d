package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/service"
	"github.com/NethermindEth/starknet-batcher/utils"
)

var _ service.Service = (*Orchestrator)(nil)

type Config struct {
	// BlockTime is the time each proposal is given to collect transactions.
	BlockTime        time.Duration `mapstructure:"block-time"`
	SequencerAddress felt.Felt     `mapstructure:"sequencer-address"`
	StarknetVersion  string        `mapstructure:"starknet-version"`
}

// Orchestrator drives a batcher the way consensus does: for every height it builds a
// proposal, streams it to the end and decides on it.
type Orchestrator struct {
	client batcher.BatcherClient
	cfg    Config
	log    utils.SimpleLogger

	height batcher.Height
	nextID batcher.ProposalID
}

func New(client batcher.BatcherClient, startHeight batcher.Height, cfg Config, log utils.SimpleLogger) *Orchestrator {
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		log:    log,
		height: startHeight,
		nextID: 1,
	}
}

// Height is the height the next round is run for.
func (o *Orchestrator) Height() batcher.Height {
	return o.height
}

func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := o.RunHeight(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			o.log.Warnw("Failed to decide height, retrying",
				"height", o.height, "transport", batcher.IsTransport(err), "err", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.cfg.BlockTime):
			}
		}
	}
}

// RunHeight builds, streams and decides one proposal for the current height. The height
// only advances when the decision was accepted.
func (o *Orchestrator) RunHeight(ctx context.Context) (*batcher.DecidedBlock, error) {
	id := o.nextID
	o.nextID++

	input := &batcher.BuildProposalInput{
		ProposalID: id,
		Height:     o.height,
		Deadline:   time.Now().Add(o.cfg.BlockTime),
		BlockInfo: batcher.BlockInfo{
			Timestamp:        uint64(time.Now().Unix()),
			SequencerAddress: o.cfg.SequencerAddress,
			StarknetVersion:  o.cfg.StarknetVersion,
		},
	}
	if err := o.client.BuildProposal(ctx, input); err != nil {
		return nil, fmt.Errorf("build proposal %d: %w", id, err)
	}

	var txHashes []felt.Felt
	finished, err := o.stream(ctx, id, func(txs []batcher.ExecutedTransaction) {
		for _, txn := range txs {
			txHashes = append(txHashes, txn.Hash)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("stream proposal %d: %w", id, err)
	}

	if err = o.client.DecisionReached(ctx, &batcher.DecisionReachedInput{ProposalID: id}); err != nil {
		return nil, fmt.Errorf("decide proposal %d: %w", id, err)
	}

	block := &batcher.DecidedBlock{
		Height:             o.height,
		ProposalID:         id,
		TxHashes:           txHashes,
		Summary:            finished.Summary,
		ProposalCommitment: finished.ProposalCommitment,
		BlockInfo:          input.BlockInfo,
		Charges:            finished.Charges,
	}
	o.log.Infow("Decided block",
		"height", block.Height,
		"proposal", id,
		"status", finished.Status,
		"txs", finished.NTxs,
		"classes", len(finished.Summary.ExecutedClassHashes),
		"storageEntries", len(finished.Summary.VisitedStorageEntries),
		"messages", finished.Summary.NMessages(),
		"events", finished.Summary.EventSummary.NEvents,
		"l2Gas", finished.Charges.Gas.L2Gas,
		"commitment", finished.ProposalCommitment.String(),
	)
	o.height++
	return block, nil
}

var errCountMismatch = errors.New("streamed transactions do not match the finished marker")

func (o *Orchestrator) stream(
	ctx context.Context,
	id batcher.ProposalID,
	onTxs func([]batcher.ExecutedTransaction),
) (*batcher.ProposalFinished, error) {
	var streamed uint64
	for {
		content, err := o.client.GetStreamContent(ctx, &batcher.GetStreamContentInput{ProposalID: id, Offset: streamed})
		if err != nil {
			return nil, err
		}
		if content.IsFinished() {
			if content.Finished.NTxs != streamed {
				return nil, fmt.Errorf("%w: streamed %d, finished with %d", errCountMismatch, streamed, content.Finished.NTxs)
			}
			return content.Finished, nil
		}
		streamed += uint64(len(content.Txs))
		onTxs(content.Txs)
	}
}
