package crypto

import "github.com/NethermindEth/starknet-batcher/core/felt"

type Digest interface {
	Update(...*felt.Felt) Digest
	Finish() felt.Felt
}
