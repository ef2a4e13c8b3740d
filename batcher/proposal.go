package batcher

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/NethermindEth/starknet-batcher/blockifier/bouncer"
	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/NethermindEth/starknet-batcher/core/crypto"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/utils"
)

// proposal is a block candidate. It is filled by its building goroutine and drained
// by GetStreamContent.
type proposal struct {
	id        ProposalID
	height    Height
	blockInfo BlockInfo
	cancel    context.CancelFunc
	// done is closed once the building goroutine returned.
	done chan struct{}

	mu       sync.Mutex
	txs      []ExecutedTransaction
	finished *ProposalFinished
	// changed is closed and replaced every time txs or finished change.
	changed chan struct{}
}

func newProposal(input *BuildProposalInput, cancel context.CancelFunc) *proposal {
	return &proposal{
		id:        input.ProposalID,
		height:    input.Height,
		blockInfo: input.BlockInfo,
		cancel:    cancel,
		done:      make(chan struct{}),
		changed:   make(chan struct{}),
	}
}

func (p *proposal) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *proposal) append(txs ...ExecutedTransaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = append(p.txs, txs...)
	p.broadcastLocked()
}

func (p *proposal) finish(status ProposalStatus, b *builder) *ProposalFinished {
	p.mu.Lock()
	defer p.mu.Unlock()

	hashes := make([]*felt.Felt, len(p.txs))
	for i := range p.txs {
		hashes[i] = &p.txs[i].Hash
	}
	p.finished = &ProposalFinished{
		Status:             status,
		NTxs:               uint64(len(p.txs)),
		Summary:            b.bouncer.Summary(),
		ProposalCommitment: crypto.PedersenArray(hashes...),
		Charges:            b.charges,
	}
	p.broadcastLocked()
	return p.finished
}

// isBuilding reports whether the building goroutine is still adding transactions.
func (p *proposal) isBuilding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished == nil
}

func (p *proposal) result() *ProposalFinished {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *proposal) transactions() []ExecutedTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.txs)
}

// next returns at most chunkSize transactions starting at offset, or the Finished
// marker once offset reached the end of a finished proposal. It waits for the building
// goroutine when nothing is available at offset yet.
func (p *proposal) next(ctx context.Context, offset uint64, chunkSize int) (StreamContent, error) {
	for {
		p.mu.Lock()
		content, ready, err := p.nextLocked(offset, chunkSize)
		changed := p.changed
		p.mu.Unlock()
		if ready {
			return content, err
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return StreamContent{}, ctx.Err()
		}
	}
}

func (p *proposal) nextLocked(offset uint64, chunkSize int) (StreamContent, bool, error) {
	built := uint64(len(p.txs))
	switch {
	case offset < built:
		end := min(offset+uint64(chunkSize), built)
		return StreamContent{Txs: slices.Clone(p.txs[offset:end])}, true, nil
	case offset > built && p.finished != nil:
		return StreamContent{}, true, newBatcherError(StreamExhausted,
			"proposal %d has %d transactions, offset %d is past its end", p.id, built, offset)
	case offset > built:
		return StreamContent{}, true, newBatcherError(InvalidInput,
			"offset %d is past the %d transactions built so far", offset, built)
	case p.finished == nil:
		return StreamContent{}, false, nil
	case p.finished.Status == ProposalAborted:
		return StreamContent{}, true, newBatcherError(ProposalFailed, "proposal %d was aborted", p.id)
	default:
		finished := *p.finished
		return StreamContent{Finished: &finished}, true, nil
	}
}

// builder fills a proposal from the mempool until its deadline, until the block is full
// or until it is aborted.
type builder struct {
	proposal  *proposal
	pool      *mempool.Pool
	bouncer   *bouncer.Bouncer
	batchSize int
	log       utils.SimpleLogger

	// charges sums the receipts of the admitted transactions.
	charges transaction.Charges
}

func (b *builder) run(ctx context.Context) ProposalStatus {
	for {
		batch, err := b.pool.PopBatch(b.batchSize)
		if err != nil {
			if !errors.Is(err, mempool.ErrTxnPoolEmpty) {
				b.log.Errorw("Failed to pop transactions", "proposal", b.proposal.id, "err", err)
				return ProposalAborted
			}
			// We wait for the mempool to get more txns before we continue
			select {
			case <-ctx.Done():
				return statusOnDone(ctx)
			case _, ok := <-b.pool.Wait():
				if !ok && b.pool.Len() == 0 {
					<-ctx.Done()
					return statusOnDone(ctx)
				}
				continue
			}
		}

		if full := b.admit(batch); full {
			return ProposalBlockFull
		}

		select {
		case <-ctx.Done():
			return statusOnDone(ctx)
		default:
		}
	}
}

// admit runs batch through the bouncer and reports whether the block became full.
// Transactions that did not make it into a full block go back to the mempool.
func (b *builder) admit(batch []ExecutedTransaction) bool {
	infos := utils.Map(batch, func(txn ExecutedTransaction) *transaction.TransactionExecutionInfo {
		return txn.ExecutionInfo
	})
	summaries := transaction.SummarizeAll(infos)

	admitted := make([]ExecutedTransaction, 0, len(batch))
	defer func() {
		if len(admitted) > 0 {
			b.proposal.append(admitted...)
		}
	}()

	for i := range batch {
		charges, err := b.charges.Add(&batch[i].ExecutionInfo.Receipt)
		if err != nil {
			droppedTxs.Inc()
			b.log.Warnw("Dropping transaction whose charges overflow the block totals",
				"proposal", b.proposal.id, "hash", batch[i].Hash.String(), "err", err)
			continue
		}

		err = b.bouncer.TryUpdate(&summaries[i])
		switch {
		case err == nil:
			if batch[i].ExecutionInfo.IsReverted() {
				revertedTxs.Inc()
			}
			b.charges = charges
			admitted = append(admitted, batch[i])
		case errors.Is(err, bouncer.ErrTransactionTooLarge):
			droppedTxs.Inc()
			b.log.Warnw("Dropping transaction that does not fit in a block",
				"proposal", b.proposal.id, "hash", batch[i].Hash.String(), "err", err)
		case errors.Is(err, bouncer.ErrBlockFull):
			if reinsertErr := b.pool.Reinsert(batch[i:]); reinsertErr != nil {
				b.log.Warnw("Failed to return transactions to the mempool", "count", len(batch)-i, "err", reinsertErr)
			}
			return true
		}
	}
	return false
}

func statusOnDone(ctx context.Context) ProposalStatus {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ProposalDeadlineReached
	}
	return ProposalAborted
}
