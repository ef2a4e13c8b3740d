package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/NethermindEth/starknet-batcher/blockifier/bouncer"
	"github.com/NethermindEth/starknet-batcher/blockifier/execution"
	"github.com/NethermindEth/starknet-batcher/blockifier/transaction"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func SummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <execution-info.json>...",
		Short: "Summarize transaction execution infos",
		Long: `This command reads JSON encoded transaction execution infos and prints the ` +
			`execution summary of each of them, followed by their aggregate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: summarize,
	}
}

func summarize(cmd *cobra.Command, args []string) error {
	infos := make([]*transaction.TransactionExecutionInfo, len(args))
	for i, path := range args {
		info, err := readExecutionInfo(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		infos[i] = info
	}

	total := execution.NewExecutionSummary()
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{
		"Transaction", "Reverted", "Classes", "Storage entries", "Messages",
		"Message segment", "Events", "Event keys", "Event data",
	})
	for i, summary := range transaction.SummarizeAll(infos) {
		table.Append(summaryRow(args[i], strconv.FormatBool(infos[i].IsReverted()), &summary))
		total.Add(summary)
	}
	table.SetFooter(summaryRow("Total", "", &total))
	table.Render()

	weights := bouncer.WeightsOf(&total)
	weights.NTxs = uint64(len(infos))
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Block weights: %s\n", weights)
	return err
}

func summaryRow(name, reverted string, summary *execution.ExecutionSummary) []string {
	return []string{
		name,
		reverted,
		strconv.Itoa(len(summary.ExecutedClassHashes)),
		strconv.Itoa(len(summary.VisitedStorageEntries)),
		strconv.Itoa(summary.NMessages()),
		strconv.Itoa(summary.MessagesSegmentLength(bouncer.MessageHeaderLength)),
		strconv.FormatUint(summary.EventSummary.NEvents, 10),
		strconv.FormatUint(summary.EventSummary.TotalEventKeys, 10),
		strconv.FormatUint(summary.EventSummary.TotalEventDataSize, 10),
	}
}

func readExecutionInfo(path string) (*transaction.TransactionExecutionInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	info := new(transaction.TransactionExecutionInfo)
	if err = json.Unmarshal(data, info); err != nil {
		return nil, err
	}
	return info, nil
}
