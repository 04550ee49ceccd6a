package config

import (
	"encoding/json"
	"os"

	"github.com/RyanW02/chainsocial/pkg/types"
	"github.com/caarlos0/env/v10"
)

type (
	Config struct {
		Production bool    `json:"production" env:"PRODUCTION" envDefault:"false"`
		PrettyLogs bool    `json:"pretty_logs" env:"PRETTY_LOGS" envDefault:"false"`
		LogLevel   string  `json:"log_level" env:"LOG_LEVEL" envDefault:"info"`
		Ledger     Ledger  `json:"ledger" envPrefix:"LEDGER_"`
		Sync       Sync    `json:"sync" envPrefix:"SYNC_"`
		Journal    Journal `json:"journal" envPrefix:"JOURNAL_"`
		Media      Media   `json:"media" envPrefix:"MEDIA_"`
		Gateway    Gateway `json:"gateway" envPrefix:"GATEWAY_"`
		Client     Client  `json:"client" envPrefix:"CLIENT_"`
	}

	Ledger struct {
		NodeAddresses       []string                 `json:"node_addresses" env:"NODE_ADDRESSES" envSeparator:","`
		MinimumNodes        int                      `json:"minimum_nodes" env:"MINIMUM_NODES" envDefault:"1"`
		QueryTimeout        types.MarshalledDuration `json:"query_timeout" env:"QUERY_TIMEOUT" envDefault:"5s"`
		PollInterval        types.MarshalledDuration `json:"poll_interval" env:"POLL_INTERVAL" envDefault:"200ms"`
		ConfirmationTimeout types.MarshalledDuration `json:"confirmation_timeout" env:"CONFIRMATION_TIMEOUT" envDefault:"30s"`
	}

	Sync struct {
		FeedFanOut       int                      `json:"feed_fan_out" env:"FEED_FAN_OUT" envDefault:"8"`
		MaxPendingWrites int                      `json:"max_pending_writes" env:"MAX_PENDING_WRITES" envDefault:"4"`
		RefreshAttempts  int                      `json:"refresh_attempts" env:"REFRESH_ATTEMPTS" envDefault:"3"`
		RefreshBackoff   types.MarshalledDuration `json:"refresh_backoff" env:"REFRESH_BACKOFF" envDefault:"500ms"`
	}

	Journal struct {
		Enabled bool   `json:"enabled" env:"ENABLED" envDefault:"true"`
		Path    string `json:"path" env:"PATH" envDefault:"journal.db"`
	}

	Media struct {
		GatewayPrefix string `json:"gateway_prefix" env:"GATEWAY_PREFIX" envDefault:"https://gateway.pinata.cloud/ipfs/"`
	}

	Gateway struct {
		Address string `json:"address" env:"ADDRESS" envDefault:"127.0.0.1:8080"`
		// FrontendPath is the build directory of a single page web frontend to serve alongside the API. Empty
		// disables it.
		FrontendPath string `json:"frontend_path" env:"FRONTEND_PATH"`
		IndexFile    string `json:"index_file" env:"INDEX_FILE" envDefault:"index.html"`
	}

	Client struct {
		KeyFile string `json:"key_file" env:"KEY_FILE" envDefault:"key.txt"`
	}
)

func Load() (Config, error) {
	var conf Config

	// Try to load JSON config file, but fallback to environment variables if it does not exist
	if _, err := os.Stat("config.json"); err == nil {
		bytes, err := os.ReadFile("config.json")
		if err != nil {
			return Config{}, err
		}

		conf = Default()
		if err := json.Unmarshal(bytes, &conf); err != nil {
			return Config{}, err
		}

		return conf, nil
	}

	if err := env.Parse(&conf); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// Default returns the configuration with every envDefault applied, ignoring the environment.
func Default() Config {
	var conf Config
	_ = env.ParseWithOptions(&conf, env.Options{Environment: map[string]string{}})
	return conf
}
