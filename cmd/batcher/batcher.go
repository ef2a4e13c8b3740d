package main

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/NethermindEth/starknet-batcher/node"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version string

const greeting = `
 _           _       _               
| |__   __ _| |_ ___| |__   ___ _ __ 
| '_ \ / _' | __/ __| '_ \ / _ \ '__|
| |_) | (_| | || (__| | | |  __/ |   
|_.__/ \__,_|\__\___|_| |_|\___|_|   

Starknet batcher %s: builds block proposals out of executed transactions.

`

const (
	configF                = "config"
	logLevelF              = "log-level"
	colourF                = "colour"
	httpF                  = "http"
	httpHostF              = "http-host"
	httpPortF              = "http-port"
	metricsF               = "metrics"
	metricsHostF           = "metrics-host"
	metricsPortF           = "metrics-port"
	dbPathF                = "db-path"
	dbCacheSizeF           = "db-cache-size"
	mempoolSizeF           = "mempool-size"
	streamChunkSizeF       = "stream-chunk-size"
	batchSizeF             = "batch-size"
	maxTxsF                = "block-max-capacity.n-txs"
	maxEventsF             = "block-max-capacity.n-events"
	maxMessageSegmentF     = "block-max-capacity.message-segment-length"
	maxStateDiffSizeF      = "block-max-capacity.state-diff-size"
	maxClassHashesF        = "block-max-capacity.n-class-hashes"
	orchestratorF          = "orchestrator"
	blockTimeF             = "block-time"
	sequencerAddressF      = "sequencer-address"
	starknetVersionF       = "starknet-version"
	batcherURLF            = "batcher-url"
	startHeightF           = "start-height"
	defaultConfig          = ""
	defaultHTTP            = false
	defaultHTTPHost        = "localhost"
	defaultHTTPPort        = uint16(6070)
	defaultMetrics         = false
	defaultMetricsHost     = "localhost"
	defaultMetricsPort     = uint16(9090)
	defaultDBPath          = ""
	defaultDBCacheSize     = 64
	defaultMempoolSize     = 10000
	defaultOrchestrator    = false
	defaultBlockTime       = 2 * time.Second
	defaultSequencerAddr   = "0x1"
	defaultStarknetVer     = "0.13.2"
	defaultBatcherURL      = ""
	defaultStartHeight     = uint64(0)
	defaultColour          = true
	configFlagUsage        = "The YAML configuration file."
	logLevelFlagUsage      = "Options: debug, info, warn, error."
	colourUsage            = "Use `--colour=false` command to disable colourized outputs (ANSI Escape Codes)."
	httpUsage              = "Enables the HTTP server exposing the batcher to remote clients."
	httpHostUsage          = "The interface on which the HTTP server will listen for requests."
	httpPortUsage          = "The port on which the HTTP server will listen for requests."
	metricsUsage           = "Enables the Prometheus metrics endpoint on the default port."
	metricsHostUsage       = "The interface on which the Prometheus endpoint will listen for requests."
	metricsPortUsage       = "The port on which the Prometheus endpoint will listen for requests."
	dbPathUsage            = "Location of the database files. The database is kept in memory when empty."
	dbCacheSizeUsage       = "Size of the database block cache in megabytes."
	mempoolSizeUsage       = "Maximum number of executed transactions waiting in the mempool."
	streamChunkSizeUsage   = "Maximum number of transactions returned by one stream request."
	batchSizeUsage         = "Number of transactions taken from the mempool at once while building a proposal."
	maxTxsUsage            = "Maximum number of transactions in a block."
	maxEventsUsage         = "Maximum number of events in a block."
	maxMessageSegmentUsage = "Maximum L2 to L1 message segment length of a block."
	maxStateDiffSizeUsage  = "Maximum number of visited storage entries in a block."
	maxClassHashesUsage    = "Maximum number of executed classes in a block."
	orchestratorUsage      = "Runs the consensus-side loop that builds, streams and decides a proposal per height."
	blockTimeUsage         = "Time each proposal is given to collect transactions."
	sequencerAddressUsage  = "Sequencer address written in the block info of every proposal."
	starknetVersionUsage   = "Starknet version written in the block info of every proposal."
	batcherURLUsage        = "URL of a remote batcher for the orchestrator to drive. The local batcher is used when empty."
	startHeightUsage       = "First height the orchestrator builds when it drives a remote batcher."
)

// BatcherNode is what the root command runs.
type BatcherNode interface {
	Run(ctx context.Context)
	Config() node.Config
}

type NewNodeFn func(cfg *node.Config, version string) (BatcherNode, error)

func NewCmd(newNodeFn NewNodeFn) *cobra.Command {
	var cfgFile string
	defaultLogLevel := utils.INFO
	defaults := batcher.DefaultConfig()

	batcherCmd := &cobra.Command{
		Use:     "batcher [flags]",
		Short:   "Starknet batcher: builds block proposals out of executed transactions.",
		Version: Version,
		Args:    cobra.NoArgs,
	}

	flags := batcherCmd.Flags()
	flags.StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	flags.Var(&defaultLogLevel, logLevelF, logLevelFlagUsage)
	flags.Bool(colourF, defaultColour, colourUsage)
	flags.Bool(httpF, defaultHTTP, httpUsage)
	flags.String(httpHostF, defaultHTTPHost, httpHostUsage)
	flags.Uint16(httpPortF, defaultHTTPPort, httpPortUsage)
	flags.Bool(metricsF, defaultMetrics, metricsUsage)
	flags.String(metricsHostF, defaultMetricsHost, metricsHostUsage)
	flags.Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)
	flags.String(dbPathF, defaultDBPath, dbPathUsage)
	flags.Uint(dbCacheSizeF, defaultDBCacheSize, dbCacheSizeUsage)
	flags.Int(mempoolSizeF, defaultMempoolSize, mempoolSizeUsage)
	flags.Int(streamChunkSizeF, defaults.StreamChunkSize, streamChunkSizeUsage)
	flags.Int(batchSizeF, defaults.BatchSize, batchSizeUsage)
	capacity := defaults.Bouncer.BlockMaxCapacity
	flags.Uint64(maxTxsF, capacity.NTxs, maxTxsUsage)
	flags.Uint64(maxEventsF, capacity.NEvents, maxEventsUsage)
	flags.Uint64(maxMessageSegmentF, capacity.MessageSegmentLength, maxMessageSegmentUsage)
	flags.Uint64(maxStateDiffSizeF, capacity.StateDiffSize, maxStateDiffSizeUsage)
	flags.Uint64(maxClassHashesF, capacity.NClassHashes, maxClassHashesUsage)
	flags.Bool(orchestratorF, defaultOrchestrator, orchestratorUsage)
	flags.Duration(blockTimeF, defaultBlockTime, blockTimeUsage)
	flags.String(sequencerAddressF, defaultSequencerAddr, sequencerAddressUsage)
	flags.String(starknetVersionF, defaultStarknetVer, starknetVersionUsage)
	flags.String(batcherURLF, defaultBatcherURL, batcherURLUsage)
	flags.Uint64(startHeightF, defaultStartHeight, startHeightUsage)

	batcherCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}

		if _, err = fmt.Fprintf(cmd.OutOrStdout(), greeting, Version); err != nil {
			return err
		}

		n, err := newNodeFn(cfg, Version)
		if err != nil {
			return err
		}

		n.Run(cmd.Context())
		return nil
	}

	batcherCmd.AddCommand(SummarizeCmd(), DBCmd(defaultDBPath))
	return batcherCmd
}

// loadConfig merges, from lowest to highest precedence, the flag defaults, the config
// file, the BATCHER_* environment variables and the flags set on the command line.
func loadConfig(cmd *cobra.Command, cfgFile string) (*node.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg := new(node.Config)
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		feltDecodeHook,
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

var feltType = reflect.TypeOf(felt.Felt{})

func feltDecodeHook(from, to reflect.Type, data any) (any, error) {
	if to != feltType || from.Kind() != reflect.String {
		return data, nil
	}
	return felt.FromString[felt.Felt](data.(string))
}
