package execution

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/fxamacker/cbor/v2"
)

// EntryPointType represents the type of an entry point
type EntryPointType uint8

const (
	EntryPointTypeExternal EntryPointType = iota
	EntryPointTypeConstructor
	EntryPointTypeL1Handler
)

// String returns the string representation of EntryPointType
func (e EntryPointType) String() string {
	switch e {
	case EntryPointTypeConstructor:
		return "CONSTRUCTOR"
	case EntryPointTypeExternal:
		return "EXTERNAL"
	case EntryPointTypeL1Handler:
		return "L1_HANDLER"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

func (e EntryPointType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *EntryPointType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "EXTERNAL":
		*e = EntryPointTypeExternal
	case "CONSTRUCTOR":
		*e = EntryPointTypeConstructor
	case "L1_HANDLER":
		*e = EntryPointTypeL1Handler
	default:
		return fmt.Errorf("unknown entry point type %q", text)
	}
	return nil
}

// CallType represents the type of call, regular, or delegate
type CallType uint8

const (
	CallTypeCall CallType = iota
	CallTypeDelegate
)

// String returns the string representation of CallType
func (c CallType) String() string {
	switch c {
	case CallTypeCall:
		return "CALL"
	case CallTypeDelegate:
		return "DELEGATE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

func (c CallType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CallType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CALL":
		*c = CallTypeCall
	case "DELEGATE", "LIBRARY_CALL":
		*c = CallTypeDelegate
	default:
		return fmt.Errorf("unknown call type %q", text)
	}
	return nil
}

// TrackedResource is the resource a call was metered in
type TrackedResource uint8

const (
	TrackedResourceCairoSteps TrackedResource = iota
	TrackedResourceSierraGas
)

func (r TrackedResource) String() string {
	switch r {
	case TrackedResourceCairoSteps:
		return "CAIRO_STEPS"
	case TrackedResourceSierraGas:
		return "SIERRA_GAS"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

func (r TrackedResource) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TrackedResource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CAIRO_STEPS":
		*r = TrackedResourceCairoSteps
	case "SIERRA_GAS":
		*r = TrackedResourceSierraGas
	default:
		return fmt.Errorf("unknown tracked resource %q", text)
	}
	return nil
}

type CallEntryPoint struct {
	// ClassHash is nil when it is deduced from the storage address
	// or when the call has no resolvable class (e.g. a pure transfer).
	ClassHash *felt.Felt `json:"class_hash,omitempty"`

	// CodeAddress is nil for library calls and for outermost calls.
	CodeAddress *felt.Felt `json:"code_address,omitempty"`

	EntryPointType     EntryPointType `json:"entry_point_type"`
	EntryPointSelector felt.Felt      `json:"entry_point_selector"`
	Calldata           []felt.Felt    `json:"calldata"`
	StorageAddress     felt.Felt      `json:"storage_address"`
	CallerAddress      felt.Felt      `json:"caller_address"`
	CallType           CallType       `json:"call_type"`
	InitialGas         uint64         `json:"initial_gas"`
}

type OrderedEvent struct {
	Order uint64      `json:"order"`
	Keys  []felt.Felt `json:"keys"`
	Data  []felt.Felt `json:"data"`
}

type OrderedL2ToL1Message struct {
	Order     uint64       `json:"order"`
	ToAddress felt.Address `json:"to_address"`
	Payload   []felt.Felt  `json:"payload"`
}

type CallExecution struct {
	Retdata        []felt.Felt            `json:"retdata"`
	Events         []OrderedEvent         `json:"events"`
	L2ToL1Messages []OrderedL2ToL1Message `json:"l2_to_l1_messages"`
	Failed         bool                   `json:"failed"`
	GasConsumed    uint64                 `json:"gas_consumed"`
}

// StorageKeySet is the set of storage keys a call read or wrote
type StorageKeySet map[felt.Felt]struct{}

func NewStorageKeySet(keys ...felt.Felt) StorageKeySet {
	set := make(StorageKeySet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Sorted returns the keys in ascending numeric order
func (s StorageKeySet) Sorted() []felt.Felt {
	keys := make([]felt.Felt, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b felt.Felt) int { return a.Cmp(&b) })
	return keys
}

func (s StorageKeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StorageKeySet) UnmarshalJSON(data []byte) error {
	var keys []felt.Felt
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*s = NewStorageKeySet(keys...)
	return nil
}

func (s StorageKeySet) MarshalCBOR() ([]byte, error) {
	if s == nil {
		return cbor.Marshal(nil)
	}
	return cbor.Marshal(s.Sorted())
}

func (s *StorageKeySet) UnmarshalCBOR(data []byte) error {
	var keys []felt.Felt
	if err := cbor.Unmarshal(data, &keys); err != nil {
		return err
	}
	if keys == nil {
		*s = nil
		return nil
	}
	*s = NewStorageKeySet(keys...)
	return nil
}

// CallInfo is the record of a single contract invocation and of every call it made.
// A CallInfo owns its InnerCalls; the tree holds no shared or back references.
type CallInfo struct {
	Call                CallEntryPoint  `json:"call"`
	Execution           CallExecution   `json:"execution"`
	InnerCalls          []CallInfo      `json:"inner_calls"`
	AccessedStorageKeys StorageKeySet   `json:"accessed_storage_keys"`
	TrackedResource     TrackedResource `json:"tracked_resource"`
}

// Iter walks the tree rooted at c in pre-order: a call is yielded before its
// inner calls, and inner calls are visited in the order they were made.
func (c *CallInfo) Iter() iter.Seq[*CallInfo] {
	return func(yield func(*CallInfo) bool) {
		stack := []*CallInfo{c}
		for len(stack) > 0 {
			call := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(call) {
				return
			}
			for i := len(call.InnerCalls) - 1; i >= 0; i-- {
				stack = append(stack, &call.InnerCalls[i])
			}
		}
	}
}

// Summarize folds the tree rooted at c into an ExecutionSummary
func (c *CallInfo) Summarize() ExecutionSummary {
	return SummarizeMany(func(yield func(*CallInfo) bool) {
		yield(c)
	})
}

// SummarizeMany folds every tree yielded by calls, in the order they are yielded.
func SummarizeMany(calls iter.Seq[*CallInfo]) ExecutionSummary {
	summary := NewExecutionSummary()
	for root := range calls {
		for call := range root.Iter() {
			summary.addCall(call)
		}
	}
	return summary
}
