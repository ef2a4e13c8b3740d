package mempool

import (
	"errors"
	"sync"

	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/utils"
)

var (
	ErrTxnPoolFull     = errors.New("transaction pool is full")
	ErrTxnPoolEmpty    = errors.New("transaction pool is empty")
	ErrTxnPoolClosed   = errors.New("transaction pool is closed")
	ErrTxnAlreadyKnown = errors.New("transaction already in the pool")
)

// ExecutedTransaction is a transaction together with the outcome of running it.
type ExecutedTransaction struct {
	Hash          felt.Felt                             `json:"transaction_hash" cbor:"1,keyasint"`
	ExecutionInfo *transaction.TransactionExecutionInfo `json:"execution_info" cbor:"2,keyasint"`
}

type memPoolTxn struct {
	Txn  ExecutedTransaction
	Next *memPoolTxn
}

type txnList struct {
	head *memPoolTxn
	tail *memPoolTxn
	len  int
	mu   sync.Mutex
}

func (l *txnList) pushBack(txn ExecutedTransaction) {
	newNode := &memPoolTxn{Txn: txn}
	if l.tail != nil {
		l.tail.Next = newNode
		l.tail = newNode
	} else {
		l.head = newNode
		l.tail = newNode
	}
	l.len++
}

func (l *txnList) pushFront(txns []ExecutedTransaction) {
	for i := len(txns) - 1; i >= 0; i-- {
		newNode := &memPoolTxn{Txn: txns[i], Next: l.head}
		l.head = newNode
		if l.tail == nil {
			l.tail = newNode
		}
		l.len++
	}
}

func (l *txnList) popFront() ExecutedTransaction {
	headNode := l.head
	l.head = headNode.Next
	if l.head == nil {
		l.tail = nil
	}
	l.len--
	return headNode.Txn
}

// Pool stores the executed transactions in a linked list for its inherent FCFS behaviour
type Pool struct {
	log        utils.SimpleLogger
	txPushed   chan struct{}
	txnList    *txnList
	known      map[felt.Felt]struct{}
	maxNumTxns int
	closed     bool
}

func New(maxNumTxns int, log utils.SimpleLogger) *Pool {
	return &Pool{
		log:        log,
		txPushed:   make(chan struct{}, 1),
		txnList:    &txnList{},
		known:      make(map[felt.Felt]struct{}),
		maxNumTxns: maxNumTxns,
	}
}

// Push queues a transaction at the back of the pool
func (p *Pool) Push(txn *ExecutedTransaction) error {
	if err := p.push(txn); err != nil {
		return err
	}

	p.log.Debugw("Added transaction to the pool", "hash", txn.Hash.String(), "reverted", txn.ExecutionInfo.IsReverted())
	return nil
}

func (p *Pool) push(txn *ExecutedTransaction) error {
	if txn.ExecutionInfo == nil {
		return errors.New("transaction has no execution info")
	}

	p.txnList.mu.Lock()
	defer p.txnList.mu.Unlock()

	if p.closed {
		return ErrTxnPoolClosed
	}
	if p.txnList.len >= p.maxNumTxns {
		return ErrTxnPoolFull
	}
	if _, ok := p.known[txn.Hash]; ok {
		return ErrTxnAlreadyKnown
	}

	p.known[txn.Hash] = struct{}{}
	p.txnList.pushBack(*txn)
	p.notify()
	return nil
}

// Reinsert puts transactions back at the front of the pool, keeping their relative order.
// Transactions already in the pool are skipped. The capacity limit is not enforced,
// reinserted transactions were admitted before.
func (p *Pool) Reinsert(txns []ExecutedTransaction) error {
	p.txnList.mu.Lock()
	if p.closed {
		p.txnList.mu.Unlock()
		return ErrTxnPoolClosed
	}

	fresh := utils.Filter(txns, func(txn ExecutedTransaction) bool {
		_, ok := p.known[txn.Hash]
		return !ok
	})
	for _, txn := range fresh {
		p.known[txn.Hash] = struct{}{}
	}
	p.txnList.pushFront(fresh)
	if len(fresh) > 0 {
		p.notify()
	}
	p.txnList.mu.Unlock()

	p.log.Debugw("Reinserted transactions into the pool", "count", len(fresh))
	return nil
}

// notify must be called with the list lock held so that it never races with Close.
func (p *Pool) notify() {
	select {
	case p.txPushed <- struct{}{}:
	default:
	}
}

// Pop returns the oldest transaction of the pool
func (p *Pool) Pop() (ExecutedTransaction, error) {
	p.txnList.mu.Lock()
	defer p.txnList.mu.Unlock()

	if p.txnList.head == nil {
		return ExecutedTransaction{}, ErrTxnPoolEmpty
	}

	txn := p.txnList.popFront()
	delete(p.known, txn.Hash)
	return txn, nil
}

// PopBatch returns up to numToPop of the oldest transactions of the pool
func (p *Pool) PopBatch(numToPop int) ([]ExecutedTransaction, error) {
	p.txnList.mu.Lock()
	defer p.txnList.mu.Unlock()

	if p.txnList.head == nil {
		return nil, ErrTxnPoolEmpty
	}

	count := min(numToPop, p.txnList.len)
	result := make([]ExecutedTransaction, count)
	for i := range count {
		result[i] = p.txnList.popFront()
		delete(p.known, result[i].Hash)
	}
	return result, nil
}

// Len returns the number of transactions in the pool
func (p *Pool) Len() int {
	p.txnList.mu.Lock()
	defer p.txnList.mu.Unlock()
	return p.txnList.len
}

// Wait returns a channel that receives a value after transactions were added to the pool
func (p *Pool) Wait() <-chan struct{} {
	return p.txPushed
}

// Close rejects further pushes and wakes up waiters. Transactions already queued can still be popped.
func (p *Pool) Close() {
	p.txnList.mu.Lock()
	defer p.txnList.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.txPushed)
	}
}
