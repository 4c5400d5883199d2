package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = ".bscwallet.json"

const (
	DefaultRPCURL     = "https://bsc-dataseed1.binance.org/"
	DefaultChainID    = 56
	DefaultUSDC       = "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"
	DefaultUSDT       = "0x55d398326f99059ff775485246999027b3197955"
	DefaultOutputDir  = "wallets"
	DefaultMaxWallets = 1000
	DefaultPort       = 8080
)

// TokenConfig holds configuration for an ERC-20 token.
type TokenConfig struct {
	Symbol   string `json:"symbol" yaml:"symbol" toml:"symbol"`
	Address  string `json:"address" yaml:"address" toml:"address"`
	Decimals int    `json:"decimals,omitempty" yaml:"decimals,omitempty" toml:"decimals,omitempty"` // 0: query decimals()
}

// ChainConfig holds configuration for the EVM chain the tool talks to.
type ChainConfig struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Symbol      string   `json:"symbol" yaml:"symbol" toml:"symbol"`
	RPCURLs     []string `json:"rpc_urls" yaml:"rpc_urls" toml:"rpc_urls"`
	ChainID     int64    `json:"chain_id,omitempty" yaml:"chain_id,omitempty" toml:"chain_id,omitempty"`
	ExplorerURL string   `json:"explorer_url,omitempty" yaml:"explorer_url,omitempty" toml:"explorer_url,omitempty"`
	// Tokens are the two stablecoins reported next to the native balance.
	Tokens []TokenConfig `json:"tokens" yaml:"tokens" toml:"tokens"`
	// ReceiptPollMS is how often a pending transfer is polled for its receipt.
	ReceiptPollMS int `json:"receipt_poll_ms,omitempty" yaml:"receipt_poll_ms,omitempty" toml:"receipt_poll_ms,omitempty"`
}

// WalletConfig controls key pair generation.
type WalletConfig struct {
	OutputDir  string `json:"output_dir" yaml:"output_dir" toml:"output_dir" env:"BSCWALLET_OUTPUT_DIR"`
	MaxWallets int    `json:"max_wallets" yaml:"max_wallets" toml:"max_wallets" env:"BSCWALLET_MAX_WALLETS"`
	Count      int    `json:"count,omitempty" yaml:"count,omitempty" toml:"count,omitempty" env:"NUMBER_OF_WALLETS"`
}

// SupplyConfig holds defaults for a distribution run. The private key is only ever read
// from the environment and is never written back to disk.
type SupplyConfig struct {
	FundingAddress    string `json:"funding_address,omitempty" yaml:"funding_address,omitempty" toml:"funding_address,omitempty" env:"MAIN_WALLET_ADDRESS"`
	FundingPrivateKey string `json:"-" yaml:"-" toml:"-" env:"MAIN_WALLET_PRIVATE_KEY"`
	TokenAmount       string `json:"token_amount,omitempty" yaml:"token_amount,omitempty" toml:"token_amount,omitempty" env:"TOKEN_AMOUNT"`
	RecipientsFile    string `json:"recipients_file" yaml:"recipients_file" toml:"recipients_file" env:"WALLETS_FILE"`
}

// BalanceConfig holds defaults for the balance checker.
type BalanceConfig struct {
	Addresses    []string `json:"addresses" yaml:"addresses" toml:"addresses" env:"BSCWALLET_ADDRESSES" envSeparator:","`
	RPCRateLimit float64  `json:"rpc_rate_limit,omitempty" yaml:"rpc_rate_limit,omitempty" toml:"rpc_rate_limit,omitempty" env:"BSCWALLET_RPC_RATE_LIMIT"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `json:"level" yaml:"level" toml:"level" env:"BSCWALLET_LOG_LEVEL"`
	File  string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty" env:"BSCWALLET_LOG_FILE"`
	JSON  bool   `json:"json,omitempty" yaml:"json,omitempty" toml:"json,omitempty" env:"BSCWALLET_LOG_JSON"`
}

// ServerConfig controls the headless status server.
type ServerConfig struct {
	Port int `json:"port" yaml:"port" toml:"port" env:"BSCWALLET_PORT"`
}

// Config is the full application configuration. It is built once at startup and
// handed to constructors by value.
type Config struct {
	Chain   ChainConfig   `json:"chain" yaml:"chain" toml:"chain"`
	Wallet  WalletConfig  `json:"wallet" yaml:"wallet" toml:"wallet"`
	Supply  SupplyConfig  `json:"supply" yaml:"supply" toml:"supply"`
	Balance BalanceConfig `json:"balance" yaml:"balance" toml:"balance"`
	Log     LogConfig     `json:"log" yaml:"log" toml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
}

// envChain holds the chain overrides that don't map onto a nested field one-to-one.
type envChain struct {
	RPCURL  string `env:"WEB3_PROVIDER"`
	ChainID int64  `env:"BSCWALLET_CHAIN_ID"`
}

// Default returns the built-in configuration: BNB Smart Chain mainnet with USDC and USDT.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			Name:        "BNB Smart Chain",
			Symbol:      "BNB",
			RPCURLs:     []string{DefaultRPCURL},
			ChainID:     DefaultChainID,
			ExplorerURL: "https://bscscan.com",
			Tokens: []TokenConfig{
				{Symbol: "USDC", Address: DefaultUSDC},
				{Symbol: "USDT", Address: DefaultUSDT},
			},
			ReceiptPollMS: 1000,
		},
		Wallet: WalletConfig{
			OutputDir:  DefaultOutputDir,
			MaxWallets: DefaultMaxWallets,
		},
		Supply: SupplyConfig{
			RecipientsFile: "wallets.csv",
		},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Port: DefaultPort},
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// Format picks the decoder for a config path by extension.
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// Load reads the config file (if present), then .env, then process environment overrides.
func Load(path string) (Config, error) {
	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		return Config{}, err
	}
	_ = godotenv.Load()
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f, Format(path))
}

// LoadConfig decodes r on top of the defaults, so partial files keep default values.
func LoadConfig(r io.Reader, format string) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &cfg)
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, err
	}

	if cfg.Wallet.MaxWallets <= 0 {
		cfg.Wallet.MaxWallets = DefaultMaxWallets
	}
	if cfg.Wallet.OutputDir == "" {
		cfg.Wallet.OutputDir = DefaultOutputDir
	}
	if cfg.Chain.ReceiptPollMS <= 0 {
		cfg.Chain.ReceiptPollMS = 1000
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	for _, target := range []any{&cfg.Wallet, &cfg.Supply, &cfg.Balance, &cfg.Log, &cfg.Server} {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("failed to process environment: %w", err)
		}
	}
	var ec envChain
	if err := env.Parse(&ec); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	if ec.RPCURL != "" {
		cfg.Chain.RPCURLs = []string{ec.RPCURL}
	}
	if ec.ChainID != 0 {
		cfg.Chain.ChainID = ec.ChainID
	}
	return nil
}

// Validate returns every structural problem found in cfg.
func (c Config) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.Chain.Name) == "" {
		problems = append(problems, "chain has no name")
	}
	if len(c.Chain.RPCURLs) == 0 {
		problems = append(problems, fmt.Sprintf("chain '%s' has no RPC URLs", c.Chain.Name))
	}
	if len(c.Chain.Tokens) != 2 {
		problems = append(problems, fmt.Sprintf("chain must list exactly 2 tokens, got %d", len(c.Chain.Tokens)))
	}
	for i, t := range c.Chain.Tokens {
		if !strings.HasPrefix(t.Address, "0x") || len(t.Address) != 42 {
			problems = append(problems, fmt.Sprintf("token at index %d has an invalid address", i))
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			problems = append(problems, fmt.Sprintf("token at index %d has invalid decimals %d", i, t.Decimals))
		}
	}
	if c.Wallet.MaxWallets <= 0 {
		problems = append(problems, "wallet.max_wallets must be positive")
	}
	if c.Balance.RPCRateLimit < 0 {
		problems = append(problems, "balance.rpc_rate_limit must not be negative")
	}
	return problems
}

func SaveConfig(cfg Config, path string) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", problems[0])
	}
	cfg.Supply.FundingPrivateKey = ""

	var data []byte
	var err error
	switch Format(path) {
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
