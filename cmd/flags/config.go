package flags

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ruteri/people-registry/httpserver"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/ruteri/people-registry/registry"
	"github.com/urfave/cli/v2"
)

// Ledger kinds.
const (
	LedgerMemory  = "memory"
	LedgerOnchain = "onchain"
)

// RegistryConfig is the server configuration that may come from a TOML file.
type RegistryConfig struct {
	Owner      interfaces.Identity
	Params     registry.Params
	Ledger     string
	RPCAddr    string
	Storage    []string
	AuthWindow time.Duration
}

// config.toml key mapping to RegistryConfig.
type fileConfig struct {
	Owner      string   `toml:"owner"`
	MinFee     string   `toml:"min_fee"`
	SeniorAge  uint32   `toml:"senior_age"`
	MaxAge     uint32   `toml:"max_age"`
	Ledger     string   `toml:"ledger"`
	RPCAddr    string   `toml:"rpc_addr"`
	Storage    []string `toml:"storage"`
	AuthWindow string   `toml:"auth_window"`
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Params:     registry.DefaultParams(),
		Ledger:     LedgerMemory,
		RPCAddr:    RpcAddrFlag.Value,
		AuthWindow: httpserver.DefaultAuthWindow,
	}
}

// LoadRegistryConfig overlays the keys defined in the TOML file at path on the
// defaults. An empty path returns the defaults.
func LoadRegistryConfig(path string) (RegistryConfig, error) {
	cfg := DefaultRegistryConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return RegistryConfig{}, fmt.Errorf("load registry config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return RegistryConfig{}, fmt.Errorf("load registry config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("owner") {
		cfg.Owner, err = interfaces.NewIdentityFromHex(strings.TrimSpace(raw.Owner))
		if err != nil {
			return RegistryConfig{}, fmt.Errorf("load registry config: owner: %w", err)
		}
	}
	if meta.IsDefined("min_fee") {
		cfg.Params.MinFee, err = interfaces.ParseAmount(raw.MinFee)
		if err != nil {
			return RegistryConfig{}, fmt.Errorf("load registry config: min_fee: %w", err)
		}
	}
	if meta.IsDefined("senior_age") {
		cfg.Params.SeniorAge = raw.SeniorAge
	}
	if meta.IsDefined("max_age") {
		cfg.Params.MaxAge = raw.MaxAge
	}
	if meta.IsDefined("ledger") {
		cfg.Ledger = strings.TrimSpace(raw.Ledger)
	}
	if meta.IsDefined("rpc_addr") {
		cfg.RPCAddr = strings.TrimSpace(raw.RPCAddr)
	}
	if meta.IsDefined("storage") {
		cfg.Storage = raw.Storage
	}
	if meta.IsDefined("auth_window") {
		cfg.AuthWindow, err = time.ParseDuration(strings.TrimSpace(raw.AuthWindow))
		if err != nil {
			return RegistryConfig{}, fmt.Errorf("load registry config: auth_window: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the configuration after flags have been applied.
func (c RegistryConfig) Validate() error {
	if c.Owner == (interfaces.Identity{}) {
		return errors.New("owner is required")
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	switch c.Ledger {
	case LedgerMemory, LedgerOnchain:
	default:
		return fmt.Errorf("unknown ledger %q: expected %s or %s", c.Ledger, LedgerMemory, LedgerOnchain)
	}
	// Memory ledger custody is lost on restart while the restored balance is not,
	// so withdrawals after a restart could never be paid.
	if c.Ledger == LedgerMemory && len(c.Storage) > 0 {
		return fmt.Errorf("the %s ledger cannot be combined with persistent storage: its custody does not survive a restart", LedgerMemory)
	}
	if c.AuthWindow <= 0 {
		return errors.New("auth window must be positive")
	}
	return nil
}

// Uint32 returns the value of the uint flag name, refusing values that do not
// fit in 32 bits.
func Uint32(cCtx *cli.Context, name string) (uint32, error) {
	v := cCtx.Uint(name)
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%s: %d is out of range, at most %d", name, v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
}
