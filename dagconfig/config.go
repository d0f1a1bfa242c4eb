package dagconfig

import (
	"fmt"
)

// Config holds the command-line/config-file options accepted by the
// daemon, parsed with jessevdk/go-flags the way the teacher's own
// config.go does.
type Config struct {
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	Testnet     bool   `long:"testnet" description:"Use the test network"`
	Listen      string `long:"listen" description:"Add an interface/port to listen for connections"`
	ConnectPeer []string `long:"connect" description:"Connect only to the specified peers at startup"`
	AddPeer     []string `long:"addpeer" description:"Add a peer to connect with at startup"`
	MaxPeers    int    `long:"maxpeers" description:"Max number of inbound and outbound peers"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems"`
	NoSeed      bool   `long:"noseed" description:"Disable DNS/hard-coded seed lookups"`

	// resolved after parsing
	NetParams *Params `no-flag:"true"`
}

// Validate fills defaults and resolves the Params for the requested
// network. It mirrors the teacher's loadConfig post-processing step,
// trimmed to the options this daemon actually exposes.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.LogDir == "" {
		c.LogDir = defaultLogDir
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = P2PDefaultMaxPeers
	}
	if c.DebugLevel == "" {
		c.DebugLevel = "info"
	}

	net := Mainnet
	if c.Testnet {
		net = Testnet
	}
	c.NetParams = ParamsForNetwork(net)

	if c.Listen == "" {
		c.Listen = c.NetParams.DefaultP2PBindAddress
	}
	if c.MaxPeers < 1 {
		return fmt.Errorf("maxpeers must be positive")
	}
	return nil
}

const (
	defaultDataDir = "shadowd-data"
	defaultLogDir  = "shadowd-logs"
)
