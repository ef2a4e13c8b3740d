package transaction

import (
	"errors"
	"fmt"
	"maps"

	"github.com/NethermindEth/starknet-batcher/core/felt"
)

var ErrGasOverflow = errors.New("gas amount addition overflow")

// TransactionReceipt contains all receipt information for a transaction.
type TransactionReceipt struct {
	// Fee represents the transaction fee that was charged (in units of the relevant fee token).
	Fee Fee `json:"fee"`

	// Gas represents the actual gas consumption the transaction is charged for execution.
	Gas GasVector `json:"gas"`

	// DaGas represents the actual gas consumption the transaction is charged for data availability.
	DaGas GasVector `json:"da_gas"`
}

// FeeToken represents the token used for fees
type FeeToken uint8

const (
	ETH FeeToken = iota
	STRK
)

// String returns the string representation of the fee token
func (ft FeeToken) String() string {
	switch ft {
	case ETH:
		return "ETH"
	case STRK:
		return "STRK"
	default:
		return "UNKNOWN"
	}
}

// FeeTokenFromString converts a string to a FeeToken
func FeeTokenFromString(s string) (FeeToken, error) {
	switch s {
	case "ETH", "WEI":
		return ETH, nil
	case "STRK", "FRI":
		return STRK, nil
	default:
		return 0, fmt.Errorf("invalid fee token: %s", s)
	}
}

func (ft FeeToken) MarshalText() ([]byte, error) {
	return []byte(ft.String()), nil
}

func (ft *FeeToken) UnmarshalText(text []byte) error {
	token, err := FeeTokenFromString(string(text))
	if err != nil {
		return err
	}
	*ft = token
	return nil
}

// Fee represents the transaction fee in units of the relevant fee token.
type Fee struct {
	Amount felt.Felt `json:"amount"`
	Unit   FeeToken  `json:"unit"`
}

// GasAmount represents an amount of gas
type GasAmount uint64

// CheckedAdd performs addition with overflow checking
func (g GasAmount) CheckedAdd(other GasAmount) (GasAmount, error) {
	if g > ^GasAmount(0)-other {
		return 0, ErrGasOverflow
	}
	return g + other, nil
}

// GasVector represents different types of gas consumption
type GasVector struct {
	L1Gas     GasAmount `json:"l1_gas"`
	L1DataGas GasAmount `json:"l1_data_gas"`
	L2Gas     GasAmount `json:"l2_gas"`
}

// CheckedAdd adds two GasVectors with overflow checking
func (gv GasVector) CheckedAdd(other GasVector) (GasVector, error) {
	l1Gas, err := gv.L1Gas.CheckedAdd(other.L1Gas)
	if err != nil {
		return GasVector{}, err
	}

	l1DataGas, err := gv.L1DataGas.CheckedAdd(other.L1DataGas)
	if err != nil {
		return GasVector{}, err
	}

	l2Gas, err := gv.L2Gas.CheckedAdd(other.L2Gas)
	if err != nil {
		return GasVector{}, err
	}

	return GasVector{
		L1Gas:     l1Gas,
		L1DataGas: l1DataGas,
		L2Gas:     l2Gas,
	}, nil
}

// Charges sums what a set of transactions is charged for. Fees are kept per token.
type Charges struct {
	Gas   GasVector              `json:"gas" cbor:"1,keyasint"`
	DaGas GasVector              `json:"da_gas" cbor:"2,keyasint"`
	Fees  map[FeeToken]felt.Felt `json:"fees,omitempty" cbor:"3,keyasint,omitempty"`
}

// Add returns c with the receipt charged on top of it. c itself is not modified,
// so the result can be discarded when the addition overflows.
func (c Charges) Add(receipt *TransactionReceipt) (Charges, error) {
	gas, err := c.Gas.CheckedAdd(receipt.Gas)
	if err != nil {
		return Charges{}, fmt.Errorf("gas: %w", err)
	}
	daGas, err := c.DaGas.CheckedAdd(receipt.DaGas)
	if err != nil {
		return Charges{}, fmt.Errorf("data availability gas: %w", err)
	}

	fees := maps.Clone(c.Fees)
	if !receipt.Fee.Amount.IsZero() {
		if fees == nil {
			fees = make(map[FeeToken]felt.Felt, 1)
		}
		total := fees[receipt.Fee.Unit]
		total.Add(&total, &receipt.Fee.Amount)
		fees[receipt.Fee.Unit] = total
	}
	return Charges{Gas: gas, DaGas: daGas, Fees: fees}, nil
}
