package dagconfig

import "testing"

func TestParamsForNetwork(t *testing.T) {
	if ParamsForNetwork(Mainnet).Network != Mainnet {
		t.Fatal("expected mainnet params")
	}
	if ParamsForNetwork(Testnet).Network != Testnet {
		t.Fatal("expected testnet params")
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.NetParams.Network != Mainnet {
		t.Fatal("expected mainnet by default")
	}
	if c.MaxPeers != P2PDefaultMaxPeers {
		t.Fatalf("expected default max peers, got %d", c.MaxPeers)
	}
	if c.Listen != c.NetParams.DefaultP2PBindAddress {
		t.Fatal("expected listen to default to network bind address")
	}
}

func TestConfigValidateTestnet(t *testing.T) {
	c := &Config{Testnet: true}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.NetParams.Network != Testnet {
		t.Fatal("expected testnet params")
	}
}
