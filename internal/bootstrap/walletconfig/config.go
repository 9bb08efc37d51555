// Package walletconfig loads daemon configuration from YAML with defaults
// and CROSSPAY_* environment overrides.
package walletconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Identity ProviderConfig `yaml:"identity"`
	Accounts ProviderConfig `yaml:"accounts"`
	Asset    AssetConfig    `yaml:"asset"`
}

type RPCConfig struct {
	Addr          string  `yaml:"addr"`
	Token         string  `yaml:"token"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	RateBurst     int     `yaml:"rateBurst"`
}

type ProviderConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	AppID   string        `yaml:"appId,omitempty"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

type AssetConfig struct {
	TokenAddress  string `yaml:"tokenAddress"`
	TokenDecimals int    `yaml:"tokenDecimals"`
	ChainID       int64  `yaml:"chainId"`
}

func Default() Config {
	return Config{
		RPC: RPCConfig{
			Addr:          "127.0.0.1:8790",
			RatePerSecond: 20,
			RateBurst:     40,
		},
		Identity: ProviderConfig{
			BaseURL: "https://auth.privy.io",
			Timeout: 30 * time.Second,
		},
		Accounts: ProviderConfig{
			BaseURL: "https://api.enclave.money",
			Timeout: 30 * time.Second,
		},
		Asset: AssetConfig{
			TokenAddress:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
			TokenDecimals: 6,
			ChainID:       10,
		},
	}
}

// LoadFromPath reads the first readable candidate config file, merges it over
// the defaults, and applies environment overrides last.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-backend/configs/config.yaml",
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.RatePerSecond != 0 {
		dst.RPC.RatePerSecond = src.RPC.RatePerSecond
	}
	if src.RPC.RateBurst != 0 {
		dst.RPC.RateBurst = src.RPC.RateBurst
	}
	mergeProvider(&dst.Identity, src.Identity)
	mergeProvider(&dst.Accounts, src.Accounts)
	if src.Asset.TokenAddress != "" {
		dst.Asset.TokenAddress = src.Asset.TokenAddress
	}
	if src.Asset.TokenDecimals != 0 {
		dst.Asset.TokenDecimals = src.Asset.TokenDecimals
	}
	if src.Asset.ChainID != 0 {
		dst.Asset.ChainID = src.Asset.ChainID
	}
}

func mergeProvider(dst *ProviderConfig, src ProviderConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.AppID != "" {
		dst.AppID = src.AppID
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_RPC_ADDR")); v != "" {
		cfg.RPC.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_RPC_TOKEN")); v != "" {
		cfg.RPC.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_IDENTITY_URL")); v != "" {
		cfg.Identity.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_IDENTITY_APP_ID")); v != "" {
		cfg.Identity.AppID = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_IDENTITY_API_KEY")); v != "" {
		cfg.Identity.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_ACCOUNTS_URL")); v != "" {
		cfg.Accounts.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_ACCOUNTS_API_KEY")); v != "" {
		cfg.Accounts.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_ASSET_ADDRESS")); v != "" {
		cfg.Asset.TokenAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_ASSET_DECIMALS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.Asset.TokenDecimals = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("CROSSPAY_CHAIN_ID")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			cfg.Asset.ChainID = parsed
		}
	}
}
