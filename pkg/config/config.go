// Package config provides a reusable loader for the operator's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"rollup-operator/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// OperatorConfig is the unified configuration for a rollup operator node. It
// mirrors the structure of the YAML files under cmd/config.
type OperatorConfig struct {
	Rollup struct {
		AccountsTreeDepth          int    `mapstructure:"accounts_tree_depth" json:"accounts_tree_depth"`
		BalancesTreeDepth          int    `mapstructure:"balances_tree_depth" json:"balances_tree_depth"`
		SupportedBlockChunkSizes   []int  `mapstructure:"supported_block_chunk_sizes" json:"supported_block_chunk_sizes"`
		BlockChunkSizesSetupPowers []int  `mapstructure:"block_chunk_sizes_setup_powers" json:"block_chunk_sizes_setup_powers"`
		MinFee                     uint64 `mapstructure:"min_fee" json:"min_fee"`
		MempoolTTLSeconds          int    `mapstructure:"mempool_ttl_seconds" json:"mempool_ttl_seconds"`
		PriorityExpirationBlocks   uint64 `mapstructure:"priority_expiration_blocks" json:"priority_expiration_blocks"`
		FeeAccountID               uint32 `mapstructure:"fee_account_id" json:"fee_account_id"`
	} `mapstructure:"rollup" json:"rollup"`

	Genesis struct {
		RootHex        string `mapstructure:"root_hex" json:"root_hex"`
		NativeSymbol   string `mapstructure:"native_symbol" json:"native_symbol"`
		NativeDecimals int    `mapstructure:"native_decimals" json:"native_decimals"`
		File           string `mapstructure:"file" json:"file"`
	} `mapstructure:"genesis" json:"genesis"`

	Network struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
		RPCEnabled bool   `mapstructure:"rpc_enabled" json:"rpc_enabled"`
		P2PPort    int    `mapstructure:"p2p_port" json:"p2p_port"`
	} `mapstructure:"network" json:"network"`

	Storage struct {
		JournalDir string `mapstructure:"journal_dir" json:"journal_dir"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig OperatorConfig

// MempoolTTL returns the configured mempool TTL as a time.Duration.
func (c *OperatorConfig) MempoolTTL() time.Duration {
	return time.Duration(c.Rollup.MempoolTTLSeconds) * time.Second
}

// GenesisRootBytes decodes the configured genesis root hex string into a
// 32-byte array. It returns an error if the string is not exactly 32 bytes
// once decoded.
func (c *OperatorConfig) GenesisRootBytes() ([32]byte, error) {
	var out [32]byte
	s := c.Genesis.RootHex
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decode genesis root: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("genesis root: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*OperatorConfig, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the OPERATOR_ENV environment
// variable.
func LoadFromEnv() (*OperatorConfig, error) {
	return Load(utils.EnvOrDefault("OPERATOR_ENV", ""))
}
