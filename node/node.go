package node

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"runtime"
	"strconv"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/component"
	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/db/pebble"
	"github.com/NethermindEth/starknet-batcher/mempool"
	"github.com/NethermindEth/starknet-batcher/orchestrator"
	"github.com/NethermindEth/starknet-batcher/service"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/sourcegraph/conc"
)

// Config is the top-level batcher node configuration.
type Config struct {
	LogLevel     utils.LogLevel `mapstructure:"log-level"`
	Colour       bool           `mapstructure:"colour"`
	HTTP         bool           `mapstructure:"http"`
	HTTPHost     string         `mapstructure:"http-host"`
	HTTPPort     uint16         `mapstructure:"http-port"`
	Metrics      bool           `mapstructure:"metrics"`
	MetricsHost  string         `mapstructure:"metrics-host"`
	MetricsPort  uint16         `mapstructure:"metrics-port"`
	DatabasePath string         `mapstructure:"db-path"`
	DBCacheSize  uint           `mapstructure:"db-cache-size"`
	MempoolSize  int            `mapstructure:"mempool-size"`

	Batcher batcher.Config `mapstructure:",squash"`

	Orchestrator       bool                `mapstructure:"orchestrator"`
	OrchestratorConfig orchestrator.Config `mapstructure:",squash"`
	// BatcherURL makes the orchestrator drive a remote batcher instead of the local one.
	BatcherURL string `mapstructure:"batcher-url"`
	// StartHeight is the first height the orchestrator builds when it drives a remote batcher.
	StartHeight uint64 `mapstructure:"start-height"`
}

type Node struct {
	cfg      *Config
	db       db.DB
	pool     *mempool.Pool
	batcher  *batcher.Batcher
	services []service.Service
	log      utils.Logger

	version string
}

// New sets up the node and its services from cfg.
func New(cfg *Config, version string) (*Node, error) { //nolint:funlen
	log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}

	database, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open DB: %w", err)
	}
	if cfg.Metrics {
		database = database.WithListener(makeDBMetrics())
	}

	pool := mempool.New(cfg.MempoolSize, log)
	b, err := batcher.New(cfg.Batcher, pool, database, log)
	if err != nil {
		return nil, utils.RunAndWrapOnError(database.Close, fmt.Errorf("create batcher: %w", err))
	}

	maxGoroutines := 2 * runtime.GOMAXPROCS(0)
	localClient, localServer := component.NewLocalComponent[batcher.BatcherRequest, batcher.BatcherResponse](
		batcher.ComponentName, b, maxGoroutines, log)
	services := []service.Service{b, localServer}

	var httpListener net.Listener
	if cfg.HTTP {
		httpListener, err = net.Listen("tcp", net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(int(cfg.HTTPPort))))
		if err != nil {
			return nil, utils.RunAndWrapOnError(database.Close, fmt.Errorf("listen on http port: %w", err))
		}
		handlers := NewHandlers(pool, b, log)
		services = append(services, makeBatcherOverHTTP(httpListener, localClient, handlers, log))
		log.Infow("Batcher HTTP server listening", "address", httpListener.Addr().String())
	}
	if cfg.Metrics {
		listener, err := net.Listen("tcp", net.JoinHostPort(cfg.MetricsHost, strconv.Itoa(int(cfg.MetricsPort))))
		if err != nil {
			err = fmt.Errorf("listen on metrics port: %w", err)
			if httpListener != nil {
				err = utils.RunAndWrapOnError(httpListener.Close, err)
			}
			return nil, utils.RunAndWrapOnError(database.Close, err)
		}
		makeBatcherInfoMetrics(version)
		makeMempoolMetrics(pool)
		makePebbleMetrics(database)
		services = append(services, makeMetrics(listener), makeDecisionMetrics(b.SubscribeDecisions(), log))
	}

	if cfg.Orchestrator {
		var (
			client      batcher.BatcherClient = batcher.NewLocalBatcherClient(localClient)
			startHeight                       = b.NextHeight()
		)
		if cfg.BatcherURL != "" {
			client = batcher.NewRemoteBatcherClient(cfg.BatcherURL, log)
			startHeight = batcher.Height(cfg.StartHeight)
		}
		services = append(services, orchestrator.New(client, startHeight, cfg.OrchestratorConfig, log))
	}

	return &Node{
		cfg:      cfg,
		db:       database,
		pool:     pool,
		batcher:  b,
		services: services,
		log:      log,
		version:  version,
	}, nil
}

func openDB(cfg *Config) (db.DB, error) {
	if cfg.DatabasePath == "" {
		return pebble.NewMem()
	}

	dbLog, err := utils.NewZapLogger(utils.ERROR, cfg.Colour)
	if err != nil {
		return nil, fmt.Errorf("create DB logger: %w", err)
	}
	return pebble.New(cfg.DatabasePath, cfg.DBCacheSize, dbLog)
}

// Run starts every service of the node and blocks until ctx is cancelled or one of
// them fails. Run will wait for all services to return before exiting.
func (n *Node) Run(ctx context.Context) {
	defer func() {
		if closeErr := n.db.Close(); closeErr != nil {
			n.log.Errorw("Error while closing the DB", "err", closeErr)
		}
	}()
	defer n.pool.Close()

	n.log.Infow("Starting batcher node", "version", n.version, "nextHeight", n.batcher.NextHeight())

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	for _, s := range n.services {
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
				cancel()
			}
		})
	}
	defer wg.Wait()

	<-ctx.Done()
	cancel()
	n.log.Infow("Shutting down batcher...")
}

func (n *Node) Config() Config {
	return *n.cfg
}

// Batcher is exposed for in-process embedding.
func (n *Node) Batcher() *batcher.Batcher {
	return n.batcher
}

func (n *Node) Mempool() *mempool.Pool {
	return n.pool
}
