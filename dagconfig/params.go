// Package dagconfig holds the protocol constants and per-network
// parameters for the daemon (spec.md section 6, "Key constants").
package dagconfig

import (
	"math/big"
	"time"

	"github.com/shadowdag/shadowd/crypto"
)

// Protocol-wide constants. These never vary by network.
const (
	// TipsLimit is the maximum number of parent tips a block header may
	// reference.
	TipsLimit = 3

	// StableHeightLimit is how far below the top a topoheight must sit
	// before it is considered immune to reordering.
	StableHeightLimit = 8

	// MaxBlockRewind is the deepest a rewind may go below the current top.
	MaxBlockRewind = StableHeightLimit - 1

	// BlockTimeMillis is the target time between blocks.
	BlockTimeMillis = 15000

	// MinimumDifficulty is the floor the difficulty controller clamps to.
	MinimumDifficulty = BlockTimeMillis * 10

	// TimestampInFutureLimitMillis bounds how far into the future a
	// candidate block's timestamp may sit relative to local wall clock.
	TimestampInFutureLimitMillis = 2000

	// MaxBlockSize is the maximum serialized size of a complete block.
	MaxBlockSize = (1024 * 1024) + (256 * 1024) // 1.25 MiB

	// FeePerKB is the minimum fee rate, in atomic units per serialized
	// kilobyte.
	FeePerKB = 1000

	// DevFeePercent is the share of each block reward diverted to the dev
	// key.
	DevFeePercent = 5

	// SideBlockRewardPercent is the share of base_reward a side block
	// (a block not on the main chain at its height) receives.
	SideBlockRewardPercent = 30

	// CoinValue is the number of atomic units per whole coin (5 decimals).
	CoinValue = 100_000

	// MaxSupply is the maximum number of atomic units ever minted.
	MaxSupply = 18_400_000 * CoinValue

	// EmissionSpeedFactor controls how quickly the block reward decays
	// toward MaxSupply.
	EmissionSpeedFactor = 21

	// RegistrationDifficulty is the fixed mini-PoW difficulty a
	// Registration transaction must satisfy in lieu of a fee.
	RegistrationDifficulty = 1000

	// Chain-sync and P2P timing and limit constants.
	ChainSyncTimeoutSecs      = 3
	ChainSyncDelaySecs        = 3
	ChainSyncRequestMaxBlocks = 64
	P2PPingDelaySecs          = 10
	PeerTimeoutRequestObjectMillis = 1500
	P2PDefaultMaxPeers        = 32
)

// NetworkID is the 16-byte handshake network identifier. Connections whose
// peer advertises a different value are rejected outright.
var NetworkID = [16]byte{0xA, 0xB, 0xC, 0xD, 0xE, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xF}

// MaxBlockSizeBig is MaxBlockSize as a *big.Int, handy for size-limit math
// shared with the PoW comparison, which already lives in 256-bit space.
var MaxBlockSizeBig = big.NewInt(MaxBlockSize)

// Network identifies which network a node is participating in. It
// determines the address-codec prefix used by the (out-of-scope) wallet
// layer and the genesis parameters below.
type Network uint8

// Supported networks.
const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	default:
		return "unknown"
	}
}

// AddressPrefix returns the bech32 human-readable prefix the (out-of-scope)
// address codec would use for this network, kept here only so config
// wiring has somewhere to source it from.
func (n Network) AddressPrefix() string {
	if n == Testnet {
		return "xet"
	}
	return "xel"
}

// Params bundles every network-dependent constant the BlockDAG engine and
// P2P layer need.
type Params struct {
	Network Network

	// GenesisHash is the hash of the network's genesis block.
	GenesisHash crypto.Hash

	// GenesisTimestampMillis is the genesis block's timestamp.
	GenesisTimestampMillis uint64

	// GenesisDifficulty is the fixed difficulty assigned to the genesis
	// block (it has no parent to derive one from).
	GenesisDifficulty uint64

	// DevFeePublicKey receives DevFeePercent of every block reward.
	DevFeePublicKey crypto.PublicKey

	// SeedNodes are dialed on startup to discover the rest of the peer
	// graph.
	SeedNodes []string

	// DefaultP2PBindAddress is the default listen address for inbound
	// peer connections.
	DefaultP2PBindAddress string
}

// devFeePublicKey is the fixed recipient of DevFeePercent of every block
// reward. It is a constant key, not a governance parameter: no code path
// ever derives or rotates it.
var devFeePublicKey = crypto.PublicKey(crypto.MustHashFromHex("dededededededededededededededededededededededededededededededede"))

// MainnetParams are the parameters used in production.
var MainnetParams = Params{
	Network:                Mainnet,
	GenesisHash:            crypto.MustHashFromHex("81cf282f5818edb220d43ec79fdbd2d8f40e94a9e6afb786b3a45bb6a085e5e9"),
	GenesisTimestampMillis: 1000,
	GenesisDifficulty:      1,
	DevFeePublicKey:        devFeePublicKey,
	SeedNodes:              []string{"127.0.0.1:2125"},
	DefaultP2PBindAddress:  "0.0.0.0:2125",
}

// TestnetParams are the parameters used for testing. It reuses mainnet's
// genesis hash layout but flags itself as testnet so the (out-of-scope)
// address codec would pick the "xet" prefix.
var TestnetParams = Params{
	Network:                Testnet,
	GenesisHash:            MainnetParams.GenesisHash,
	GenesisTimestampMillis: MainnetParams.GenesisTimestampMillis,
	GenesisDifficulty:      1,
	DevFeePublicKey:        devFeePublicKey,
	SeedNodes:              []string{"127.0.0.1:2126"},
	DefaultP2PBindAddress:  "0.0.0.0:2126",
}

// ParamsForNetwork returns the Params for the named network.
func ParamsForNetwork(n Network) *Params {
	switch n {
	case Testnet:
		return &TestnetParams
	default:
		return &MainnetParams
	}
}

// FutureLimit returns how far into the future a timestamp may sit.
func FutureLimit() time.Duration {
	return TimestampInFutureLimitMillis * time.Millisecond
}
