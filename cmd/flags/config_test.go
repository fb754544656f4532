package flags

import (
	"flag"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/people-registry/httpserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRegistryConfig_Defaults(t *testing.T) {
	cfg, err := LoadRegistryConfig("")
	require.NoError(t, err)

	assert.Equal(t, 0, big.NewInt(params.Ether).Cmp(cfg.Params.MinFee))
	assert.Equal(t, uint32(65), cfg.Params.SeniorAge)
	assert.Equal(t, uint32(150), cfg.Params.MaxAge)
	assert.Equal(t, LedgerMemory, cfg.Ledger)
	assert.Equal(t, httpserver.DefaultAuthWindow, cfg.AuthWindow)

	// Owner has no default
	assert.Error(t, cfg.Validate())
}

func TestLoadRegistryConfig_Overlay(t *testing.T) {
	path := writeConfig(t, `
owner = "0x00000000000000000000000000000000000000aa"
min_fee = "0.5ether"
senior_age = 60
ledger = "onchain"
storage = ["file:///var/lib/people-registry", "redis://localhost:6379/0"]
auth_window = "90s"
`)

	cfg, err := LoadRegistryConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, common.HexToAddress("0xaa"), cfg.Owner)
	assert.Equal(t, 0, big.NewInt(params.Ether/2).Cmp(cfg.Params.MinFee))
	assert.Equal(t, uint32(60), cfg.Params.SeniorAge)
	assert.Equal(t, uint32(150), cfg.Params.MaxAge, "undefined keys keep defaults")
	assert.Equal(t, LedgerOnchain, cfg.Ledger)
	assert.Equal(t, RpcAddrFlag.Value, cfg.RPCAddr)
	assert.Len(t, cfg.Storage, 2)
	assert.Equal(t, 90*time.Second, cfg.AuthWindow)
}

func TestLoadRegistryConfig_Errors(t *testing.T) {
	tests := map[string]string{
		"bad owner":   `owner = "alice"`,
		"bad fee":     `min_fee = "a lot"`,
		"bad window":  `auth_window = "soon"`,
		"unknown key": `min_fees = "1ether"`,
		"not toml":    `owner = `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRegistryConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := LoadRegistryConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRegistryConfig_Validate(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.Owner = common.HexToAddress("0x01")
	require.NoError(t, cfg.Validate())

	cfg.Ledger = "bank"
	assert.Error(t, cfg.Validate())

	cfg.Ledger = LedgerMemory
	cfg.Params.MaxAge = 0
	assert.Error(t, cfg.Validate())
}

func TestRegistryConfig_MemoryLedgerWithStorage(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.Owner = common.HexToAddress("0x01")
	cfg.Storage = []string{"file:///tmp/people-registry"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent storage")

	cfg.Ledger = LedgerOnchain
	assert.NoError(t, cfg.Validate())
}

func TestUint32(t *testing.T) {
	tests := []struct {
		arg     string
		want    uint32
		wantErr bool
	}{
		{arg: "65", want: 65},
		{arg: "4294967295", want: math.MaxUint32},
		{arg: "4294967296", wantErr: true},
		{arg: "4294967361", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			set := flag.NewFlagSet("test", flag.ContinueOnError)
			set.Uint("senior-age", 0, "")
			require.NoError(t, set.Parse([]string{"--senior-age", tt.arg}))

			got, err := Uint32(cli.NewContext(nil, set, nil), "senior-age")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvVars(t *testing.T) {
	assert.Equal(t, []string{"PEOPLE_REGISTRY_LISTEN_ADDR"}, EnvVars("listen-addr"))
}
