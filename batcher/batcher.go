package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/starknet-batcher/blockifier/bouncer"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/feed"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/service"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/NethermindEth/starknet-batcher/validator"
	"github.com/sourcegraph/conc"
)

type Config struct {
	Bouncer bouncer.BouncerConfig `mapstructure:",squash"`
	// StreamChunkSize is the maximum number of transactions returned by one GetStreamContent call.
	StreamChunkSize int `mapstructure:"stream-chunk-size"`
	// BatchSize is the number of transactions popped from the mempool at once.
	BatchSize int `mapstructure:"batch-size"`
}

func DefaultConfig() Config {
	return Config{
		Bouncer:         bouncer.DefaultConfig(),
		StreamChunkSize: 100,
		BatchSize:       10,
	}
}

var _ service.Service = (*Batcher)(nil)

// Batcher builds block proposals out of executed transactions, streams them to
// consensus and persists the one consensus decides on.
type Batcher struct {
	cfg      Config
	pool     *mempool.Pool
	storage  *Storage
	log      utils.SimpleLogger
	decided  *feed.Feed[*DecidedBlock]
	builders conc.WaitGroup

	// runCtx is the parent of every proposal context, it is cancelled when Run returns.
	runCtx  context.Context
	stopRun context.CancelFunc

	// decideMu serialises decisions, a proposal released by one is unknown to the next.
	decideMu sync.Mutex

	mu         sync.Mutex
	proposals  map[ProposalID]*proposal
	building   *proposal
	nextHeight Height
}

func New(cfg Config, pool *mempool.Pool, database db.DB, log utils.SimpleLogger) (*Batcher, error) {
	if cfg.StreamChunkSize <= 0 || cfg.BatchSize <= 0 {
		return nil, errors.New("stream chunk size and batch size must be positive")
	}

	storage := NewStorage(database)
	latest, found, err := storage.LatestDecidedHeight()
	if err != nil {
		return nil, fmt.Errorf("read latest decided height: %w", err)
	}
	var nextHeight Height
	if found {
		nextHeight = latest + 1
		decidedHeight.Set(float64(latest))
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	return &Batcher{
		cfg:        cfg,
		pool:       pool,
		storage:    storage,
		log:        log,
		decided:    feed.New[*DecidedBlock](),
		runCtx:     runCtx,
		stopRun:    stopRun,
		proposals:  make(map[ProposalID]*proposal),
		nextHeight: nextHeight,
	}, nil
}

// Run blocks until ctx is cancelled, then aborts every proposal still being built.
func (b *Batcher) Run(ctx context.Context) error {
	<-ctx.Done()
	b.stopRun()
	b.builders.Wait()
	return nil
}

// NextHeight is the lowest height a proposal can still be built for.
func (b *Batcher) NextHeight() Height {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextHeight
}

func (b *Batcher) BuildProposal(_ context.Context, input *BuildProposalInput) error {
	if err := validator.Validator().Struct(input); err != nil {
		return newBatcherError(InvalidInput, "%v", err)
	}
	if input.Deadline.IsZero() || !input.Deadline.After(time.Now()) {
		return newBatcherError(InvalidInput, "deadline %v is not in the future", input.Deadline)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runCtx.Err() != nil {
		return newBatcherError(Internal, "batcher is shutting down")
	}
	if input.Height < b.nextHeight {
		return newBatcherError(InvalidInput, "height %d is already decided, next height is %d", input.Height, b.nextHeight)
	}
	if b.building != nil && b.building.isBuilding() {
		return newBatcherError(HeightInProgress, "proposal %d is being built at height %d", b.building.id, b.building.height)
	}
	if _, ok := b.proposals[input.ProposalID]; ok {
		return newBatcherError(ProposalAlreadyExists, "proposal %d", input.ProposalID)
	}

	ctx, cancel := context.WithDeadline(b.runCtx, input.Deadline)
	p := newProposal(input, cancel)
	b.proposals[p.id] = p
	b.building = p

	bldr := &builder{
		proposal:  p,
		pool:      b.pool,
		bouncer:   bouncer.New(b.cfg.Bouncer),
		batchSize: b.cfg.BatchSize,
		log:       b.log,
	}
	proposalsStarted.Inc()
	b.log.Infow("Building proposal", "id", p.id, "height", p.height, "deadline", input.Deadline)

	b.builders.Go(func() {
		defer close(p.done)
		defer cancel()

		status := bldr.run(ctx)
		finished := p.finish(status, bldr)

		proposalsFinished.WithLabelValues(status.String()).Inc()
		proposalTxs.Observe(float64(finished.NTxs))
		b.log.Infow("Finished building proposal",
			"id", p.id,
			"height", p.height,
			"status", status,
			"txs", finished.NTxs,
			"events", finished.Summary.EventSummary.NEvents,
			"messages", finished.Summary.NMessages(),
			"commitment", finished.ProposalCommitment.String(),
		)
	})
	return nil
}

func (b *Batcher) proposal(id ProposalID) (*proposal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.proposals[id]
	if !ok {
		return nil, newBatcherError(ProposalNotFound, "proposal %d", id)
	}
	return p, nil
}

// GetStreamContent returns the chunk of transactions of a proposal starting at
// input.Offset, then its Finished marker once the offset reached the end. Offsets past
// the end of a finished proposal are exhausted. Reads do not move any server side
// cursor, so a request whose response was lost can be sent again.
func (b *Batcher) GetStreamContent(ctx context.Context, input *GetStreamContentInput) (StreamContent, error) {
	p, err := b.proposal(input.ProposalID)
	if err != nil {
		return StreamContent{}, err
	}
	return p.next(ctx, input.Offset, b.cfg.StreamChunkSize)
}

// DecisionReached persists the decided proposal, publishes it and releases its height.
// Transactions of competing proposals at the same height go back to the mempool.
func (b *Batcher) DecisionReached(_ context.Context, input *DecisionReachedInput) error {
	b.decideMu.Lock()
	defer b.decideMu.Unlock()

	p, err := b.proposal(input.ProposalID)
	if err != nil {
		return err
	}

	finished := p.result()
	if finished == nil {
		return newBatcherError(DecisionOnUnfinishedProposal, "proposal %d is still being built", p.id)
	}
	if finished.Status == ProposalAborted {
		return newBatcherError(ProposalFailed, "proposal %d was aborted", p.id)
	}

	txs := p.transactions()
	block := &DecidedBlock{
		Height:             p.height,
		ProposalID:         p.id,
		TxHashes:           utils.Map(txs, func(txn ExecutedTransaction) felt.Felt { return txn.Hash }),
		Summary:            finished.Summary,
		ProposalCommitment: finished.ProposalCommitment,
		BlockInfo:          p.blockInfo,
		Charges:            finished.Charges,
	}
	if err = b.storage.StoreDecidedBlock(block); err != nil {
		return newBatcherError(Internal, "store decided block %d: %v", block.Height, err)
	}

	competing := b.releaseHeight(p)
	for _, other := range competing {
		other.cancel()
		<-other.done
	}
	b.returnToMempool(block, competing)

	decidedHeight.Set(float64(block.Height))
	b.decided.Send(block)
	b.log.Infow("Decision reached",
		"height", block.Height,
		"proposal", block.ProposalID,
		"txs", len(block.TxHashes),
		"competing", len(competing),
	)
	return nil
}

// releaseHeight forgets every proposal up to the height of decided and returns the
// competing proposals of that height.
func (b *Batcher) releaseHeight(decided *proposal) []*proposal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var competing []*proposal
	for id, p := range b.proposals {
		if p.height > decided.height {
			continue
		}
		if p != decided {
			competing = append(competing, p)
		}
		delete(b.proposals, id)
	}
	if b.building != nil && b.building.height <= decided.height {
		b.building = nil
	}
	b.nextHeight = max(b.nextHeight, decided.height+1)
	return competing
}

func (b *Batcher) returnToMempool(decided *DecidedBlock, competing []*proposal) {
	included := make(map[felt.Felt]struct{}, len(decided.TxHashes))
	for _, hash := range decided.TxHashes {
		included[hash] = struct{}{}
	}

	var returned []ExecutedTransaction
	for _, p := range competing {
		returned = append(returned, utils.Filter(p.transactions(), func(txn ExecutedTransaction) bool {
			_, ok := included[txn.Hash]
			return !ok
		})...)
	}
	if len(returned) == 0 {
		return
	}
	if err := b.pool.Reinsert(returned); err != nil {
		b.log.Warnw("Failed to return transactions of competing proposals", "count", len(returned), "err", err)
	}
}

// decisionsBuffer is how many decided blocks a subscriber can lag behind before it misses some.
const decisionsBuffer = 16

// SubscribeDecisions returns a subscription receiving the decided blocks.
func (b *Batcher) SubscribeDecisions() *feed.Subscription[*DecidedBlock] {
	return b.decided.Subscribe(decisionsBuffer)
}

// DecidedBlock returns the block decided at height or db.ErrKeyNotFound.
func (b *Batcher) DecidedBlock(height Height) (*DecidedBlock, error) {
	return b.storage.DecidedBlock(height)
}
