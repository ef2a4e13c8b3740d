package execution

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/fxamacker/cbor/v2"
)

// StorageEntry identifies a storage cell of a contract.
type StorageEntry struct {
	ContractAddress felt.Felt `json:"contract_address" cbor:"1,keyasint"`
	Key             felt.Felt `json:"key" cbor:"2,keyasint"`
}

func (e StorageEntry) Cmp(other StorageEntry) int {
	if c := e.ContractAddress.Cmp(&other.ContractAddress); c != 0 {
		return c
	}
	return e.Key.Cmp(&other.Key)
}

type EventSummary struct {
	NEvents            uint64 `json:"n_events" cbor:"1,keyasint"`
	TotalEventKeys     uint64 `json:"total_event_keys" cbor:"2,keyasint"`
	TotalEventDataSize uint64 `json:"total_event_data_size" cbor:"3,keyasint"`
}

func (e *EventSummary) Add(other EventSummary) {
	e.NEvents += other.NEvents
	e.TotalEventKeys += other.TotalEventKeys
	e.TotalEventDataSize += other.TotalEventDataSize
}

// ExecutionSummary is the aggregate of one or more call trees.
//
// ExecutedClassHashes and VisitedStorageEntries are sets: only membership is meaningful.
// L2ToL1PayloadLengths keeps one entry per message, in traversal order.
type ExecutionSummary struct {
	ExecutedClassHashes   map[felt.Felt]struct{}
	VisitedStorageEntries map[StorageEntry]struct{}
	L2ToL1PayloadLengths  []int
	EventSummary          EventSummary
}

func NewExecutionSummary() ExecutionSummary {
	return ExecutionSummary{
		ExecutedClassHashes:   make(map[felt.Felt]struct{}),
		VisitedStorageEntries: make(map[StorageEntry]struct{}),
		L2ToL1PayloadLengths:  []int{},
	}
}

func (s *ExecutionSummary) addCall(call *CallInfo) {
	if call.Call.ClassHash != nil {
		s.ExecutedClassHashes[*call.Call.ClassHash] = struct{}{}
	}

	for key := range call.AccessedStorageKeys {
		s.VisitedStorageEntries[StorageEntry{
			ContractAddress: call.Call.StorageAddress,
			Key:             key,
		}] = struct{}{}
	}

	events := call.Execution.Events
	s.EventSummary.NEvents += uint64(len(events))
	for i := range events {
		s.EventSummary.TotalEventKeys += uint64(len(events[i].Keys))
		s.EventSummary.TotalEventDataSize += uint64(len(events[i].Data))
	}

	for i := range call.Execution.L2ToL1Messages {
		s.L2ToL1PayloadLengths = append(s.L2ToL1PayloadLengths, len(call.Execution.L2ToL1Messages[i].Payload))
	}
}

// Add merges other into s. Sets are unioned, payload lengths of other are appended
// after those of s and event counters are summed.
func (s *ExecutionSummary) Add(other ExecutionSummary) {
	if s.ExecutedClassHashes == nil {
		s.ExecutedClassHashes = make(map[felt.Felt]struct{}, len(other.ExecutedClassHashes))
	}
	if s.VisitedStorageEntries == nil {
		s.VisitedStorageEntries = make(map[StorageEntry]struct{}, len(other.VisitedStorageEntries))
	}
	maps.Copy(s.ExecutedClassHashes, other.ExecutedClassHashes)
	maps.Copy(s.VisitedStorageEntries, other.VisitedStorageEntries)
	s.L2ToL1PayloadLengths = append(s.L2ToL1PayloadLengths, other.L2ToL1PayloadLengths...)
	s.EventSummary.Add(other.EventSummary)
}

func (s *ExecutionSummary) NMessages() int {
	return len(s.L2ToL1PayloadLengths)
}

func (s *ExecutionSummary) SortedClassHashes() []felt.Felt {
	hashes := slices.Collect(maps.Keys(s.ExecutedClassHashes))
	slices.SortFunc(hashes, func(a, b felt.Felt) int { return a.Cmp(&b) })
	return hashes
}

func (s *ExecutionSummary) SortedStorageEntries() []StorageEntry {
	entries := slices.Collect(maps.Keys(s.VisitedStorageEntries))
	slices.SortFunc(entries, StorageEntry.Cmp)
	return entries
}

// MessagesSegmentLength is the number of felts the messages take when sent to L1,
// headerLength felts per message plus its payload.
func (s *ExecutionSummary) MessagesSegmentLength(headerLength int) int {
	total := 0
	for _, length := range s.L2ToL1PayloadLengths {
		total += headerLength + length
	}
	return total
}

// summaryEncoding is the wire and storage form of an ExecutionSummary.
// Sets are written as sorted arrays so equal summaries always encode to the same bytes.
type summaryEncoding struct {
	ExecutedClassHashes   []felt.Felt    `json:"executed_class_hashes" cbor:"1,keyasint"`
	VisitedStorageEntries []StorageEntry `json:"visited_storage_entries" cbor:"2,keyasint"`
	L2ToL1PayloadLengths  []int          `json:"l2_to_l1_payload_lengths" cbor:"3,keyasint"`
	EventSummary          EventSummary   `json:"event_summary" cbor:"4,keyasint"`
}

func (s *ExecutionSummary) encoding() summaryEncoding {
	return summaryEncoding{
		ExecutedClassHashes:   s.SortedClassHashes(),
		VisitedStorageEntries: s.SortedStorageEntries(),
		L2ToL1PayloadLengths:  append([]int{}, s.L2ToL1PayloadLengths...),
		EventSummary:          s.EventSummary,
	}
}

func (s *ExecutionSummary) fromEncoding(enc *summaryEncoding) {
	*s = NewExecutionSummary()
	for _, hash := range enc.ExecutedClassHashes {
		s.ExecutedClassHashes[hash] = struct{}{}
	}
	for _, entry := range enc.VisitedStorageEntries {
		s.VisitedStorageEntries[entry] = struct{}{}
	}
	s.L2ToL1PayloadLengths = append(s.L2ToL1PayloadLengths, enc.L2ToL1PayloadLengths...)
	s.EventSummary = enc.EventSummary
}

func (s ExecutionSummary) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.encoding())
}

func (s *ExecutionSummary) UnmarshalCBOR(data []byte) error {
	var enc summaryEncoding
	if err := cbor.Unmarshal(data, &enc); err != nil {
		return err
	}
	s.fromEncoding(&enc)
	return nil
}

func (s ExecutionSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.encoding())
}

func (s *ExecutionSummary) UnmarshalJSON(data []byte) error {
	var enc summaryEncoding
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	s.fromEncoding(&enc)
	return nil
}
