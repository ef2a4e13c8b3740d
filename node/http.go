package node

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/component"
	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/service"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
)

type httpService struct {
	srv      *http.Server
	listener net.Listener
}

var _ service.Service = (*httpService)(nil)

func (h *httpService) Run(ctx context.Context) error {
	errCh := make(chan error)
	defer close(errCh)

	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		if err := h.srv.Serve(h.listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return h.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func newHTTPService(listener net.Listener, handler http.Handler) *httpService {
	return &httpService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: handler,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

// makeBatcherOverHTTP exposes the batcher component to remote clients, together with a
// transaction intake and a read endpoint for decided blocks.
func makeBatcherOverHTTP(
	listener net.Listener,
	local component.Client[batcher.BatcherRequest, batcher.BatcherResponse],
	handlers *Handlers,
	log utils.SimpleLogger,
) *httpService {
	mux := http.NewServeMux()
	mux.Handle("/", component.NewRemoteServer(batcher.ComponentName, local, log))
	mux.HandleFunc("POST /transactions", handlers.HandleAddTransaction)
	mux.HandleFunc("GET /decided_blocks/{height}", handlers.HandleDecidedBlock)
	return newHTTPService(listener, mux)
}

func makeMetrics(listener net.Listener) *httpService {
	return newHTTPService(listener,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{Registry: prometheus.DefaultRegisterer}))
}

type decidedBlockReader interface {
	DecidedBlock(height batcher.Height) (*batcher.DecidedBlock, error)
}

// Handlers serves the JSON endpoints of the node.
type Handlers struct {
	pool    *mempool.Pool
	decided decidedBlockReader
	log     utils.SimpleLogger
}

func NewHandlers(pool *mempool.Pool, decided decidedBlockReader, log utils.SimpleLogger) *Handlers {
	return &Handlers{
		pool:    pool,
		decided: decided,
		log:     log,
	}
}

// HandleAddTransaction queues a JSON encoded executed transaction in the mempool.
func (h *Handlers) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var txn mempool.ExecutedTransaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransactionSize)).Decode(&txn); err != nil {
		http.Error(w, "decode transaction: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.pool.Push(&txn)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, mempool.ErrTxnAlreadyKnown):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, mempool.ErrTxnPoolFull), errors.Is(err, mempool.ErrTxnPoolClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// HandleDecidedBlock returns the JSON encoded block decided at the requested height.
func (h *Handlers) HandleDecidedBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	}

	block, err := h.decided.DecidedBlock(batcher.Height(height))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			http.Error(w, "block not decided", http.StatusNotFound)
			return
		}
		h.log.Errorw("Failed to read decided block", "height", height, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(block); err != nil {
		h.log.Debugw("Failed to write decided block", "height", height, "err", err)
	}
}

const maxTransactionSize = 16 << 20
