// Package config provides a reusable loader for the wallet's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"neptunewallet/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a wallet-core process. It mirrors
// the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		Name        string `mapstructure:"name" json:"name"`        // "main", "testnet-mock", "regtest", "testnet-0", ...
		RestServer  string `mapstructure:"rest_server" json:"rest_server"`
	} `mapstructure:"network" json:"network"`

	Sync struct {
		NumFutureKeys   uint64 `mapstructure:"num_future_keys" json:"num_future_keys"`
		PrepareBatch    uint64 `mapstructure:"prepare_batch" json:"prepare_batch"`
		ProverPoolSize  int    `mapstructure:"prover_pool_size" json:"prover_pool_size"`
	} `mapstructure:"sync" json:"sync"`

	Storage struct {
		DataDir       string `mapstructure:"data_dir" json:"data_dir"`
		CacheBlocks   int    `mapstructure:"cache_blocks" json:"cache_blocks"`
		SnapshotDir   string `mapstructure:"snapshot_dir" json:"snapshot_dir"`
	} `mapstructure:"storage" json:"storage"`

	RPC struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"rpc" json:"rpc"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
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

	viper.SetEnvPrefix("NEPTW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up NEPTW_* overrides, e.g. NEPTW_NETWORK_REST_SERVER

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the WALLET_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("WALLET_ENV", ""))
}
