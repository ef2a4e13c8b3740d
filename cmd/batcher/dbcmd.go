package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/NethermindEth/starknet-batcher/batcher"
	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/db/pebble"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// inspectCacheSize is the block cache, in megabytes, of the read only db commands.
const inspectCacheSize = 8

func DBCmd(defaultDBPath string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database related operations",
		Long:  `This command allows you to inspect the decided blocks stored in the database.`,
	}

	dbCmd.PersistentFlags().String(dbPathF, defaultDBPath, dbPathUsage)
	dbCmd.AddCommand(DBInfoCmd(), DBBlockCmd(), DBBlocksCmd())
	return dbCmd
}

func DBInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Retrieve database information",
		Long:  `This subcommand displays the latest decided block stored in the database.`,
		Args:  cobra.NoArgs,
		RunE:  dbInfo,
	}
}

func DBBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <height>",
		Short: "Print a decided block",
		Long:  `This subcommand prints the JSON encoding of the block decided at the given height.`,
		Args:  cobra.ExactArgs(1),
		RunE:  dbBlock,
	}
}

func DBBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks [from] [to]",
		Short: "List decided blocks",
		Long: `This subcommand lists the blocks decided between two heights, both included.
The range starts at height 0 and ends at the latest decided height when omitted.`,
		Args: cobra.MaximumNArgs(2),
		RunE: dbBlocks,
	}
}

func dbInfo(cmd *cobra.Command, _ []string) error {
	storage, closeDB, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	latest, found, err := storage.LatestDecidedHeight()
	if err != nil {
		return err
	}
	if !found {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No block was decided yet.")
		return err
	}

	block, err := storage.DecidedBlock(latest)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Latest height", "Proposal", "Transactions", "Commitment", "Starknet version"})
	table.Append([]string{
		strconv.FormatUint(uint64(block.Height), 10),
		strconv.FormatUint(uint64(block.ProposalID), 10),
		strconv.Itoa(len(block.TxHashes)),
		block.ProposalCommitment.String(),
		block.BlockInfo.StarknetVersion,
	})
	table.Render()
	return nil
}

func dbBlock(cmd *cobra.Command, args []string) error {
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid height %q: %w", args[0], err)
	}

	storage, closeDB, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	block, err := storage.DecidedBlock(batcher.Height(height))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("no block decided at height %d", height)
		}
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(block)
}

func dbBlocks(cmd *cobra.Command, args []string) error {
	bounds := make([]uint64, len(args))
	for i, arg := range args {
		height, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", arg, err)
		}
		bounds[i] = height
	}

	storage, closeDB, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	from, to := batcher.Height(0), batcher.Height(math.MaxUint64)
	if len(bounds) > 0 {
		from = batcher.Height(bounds[0])
	}
	if len(bounds) > 1 {
		to = batcher.Height(bounds[1])
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Height", "Proposal", "Transactions", "Events", "Messages", "L2 Gas", "Commitment"})
	var count int
	err = storage.DecidedBlocks(from, to, func(block *batcher.DecidedBlock) error {
		count++
		table.Append([]string{
			strconv.FormatUint(uint64(block.Height), 10),
			strconv.FormatUint(uint64(block.ProposalID), 10),
			strconv.Itoa(len(block.TxHashes)),
			strconv.FormatUint(block.Summary.EventSummary.NEvents, 10),
			strconv.Itoa(block.Summary.NMessages()),
			strconv.FormatUint(uint64(block.Charges.Gas.L2Gas), 10),
			block.ProposalCommitment.String(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No block was decided in this range.")
		return err
	}
	table.Render()
	return nil
}

func openStorage(cmd *cobra.Command) (*batcher.Storage, func(), error) {
	dbPath, err := cmd.Flags().GetString(dbPathF)
	if err != nil {
		return nil, nil, err
	}
	if dbPath == "" {
		return nil, nil, errors.New("--db-path is required")
	}

	dbLog, err := utils.NewZapLogger(utils.ERROR, false)
	if err != nil {
		return nil, nil, err
	}
	database, err := pebble.New(dbPath, inspectCacheSize, dbLog)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "close database:", closeErr)
		}
	}
	return batcher.NewStorage(database), closeDB, nil
}
