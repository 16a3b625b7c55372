// Package config loads the outer configuration bundle for a program that
// embeds the SDK: API endpoints, dry-run mode, nonce allocation mode, and
// the account/signing-key material needed to build a Credentials value.
// The core SDK client itself takes an explicit Credentials struct and has
// no dependency on viper or the filesystem — this loader exists purely
// for the convenience of cmd/example and similar outer programs, per the
// "outer loader only" design note.
//
// Grounded on the teacher's internal/config/config.go: same YAML file +
// POLY_*-style env override shape via spf13/viper, generalized from the
// bot's wallet/strategy/risk sections to this SDK's account/signing-key
// section.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lighter-client/lighterclient/internal/nonce"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// Bundle is the top-level configuration. Maps directly to the YAML file
// structure.
type Bundle struct {
	DryRun    bool          `mapstructure:"dry_run"`
	ApiURL    string        `mapstructure:"api_url"`
	WsURL     string        `mapstructure:"ws_url"`
	NonceMode string        `mapstructure:"nonce_mode"`
	Account   AccountConfig `mapstructure:"account"`
	Logging   LoggingConfig `mapstructure:"logging"`
}

// AccountConfig identifies the trading account and its signing keys.
// ApiKeys maps a decimal api_key_index string ("0", "1", ...) to a
// hex-encoded ECDSA private key. Every configured index becomes a nonce
// lane; the core client signs for all of them with the key configured
// for the lowest index.
type AccountConfig struct {
	AccountId int64             `mapstructure:"account_id"`
	ApiKeys   map[string]string `mapstructure:"api_keys"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Credentials is the explicit, viper-free input the core SDK client
// constructor takes: an account id and the signing keys configured for
// it, keyed by api_key_index.
type Credentials struct {
	AccountId types.AccountId
	ApiKeys   map[types.ApiKeyIndex]string
}

// Load reads config from a YAML file with LIGHTER_* env var overrides.
// LIGHTER_PRIVATE_KEY, if set, is applied to api_key_index 0 — the common
// case of a single signing key — without requiring the YAML file to
// declare an account.api_keys section at all.
func Load(path string) (*Bundle, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LIGHTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("nonce_mode", "optimistic")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Bundle
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if id := os.Getenv("LIGHTER_ACCOUNT_ID"); id != "" {
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LIGHTER_ACCOUNT_ID: %w", err)
		}
		cfg.Account.AccountId = parsed
	}
	if key := os.Getenv("LIGHTER_PRIVATE_KEY"); key != "" {
		if cfg.Account.ApiKeys == nil {
			cfg.Account.ApiKeys = make(map[string]string)
		}
		cfg.Account.ApiKeys["0"] = key
	}
	if os.Getenv("LIGHTER_DRY_RUN") == "true" || os.Getenv("LIGHTER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks the required fields and value ranges.
func (b *Bundle) Validate() error {
	if b.ApiURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if b.Account.AccountId == 0 {
		return fmt.Errorf("account.account_id is required")
	}
	if len(b.Account.ApiKeys) == 0 {
		return fmt.Errorf("account.api_keys must configure at least one signing key (or set LIGHTER_PRIVATE_KEY)")
	}
	switch b.NonceMode {
	case "optimistic", "strict":
	default:
		return fmt.Errorf("nonce_mode must be 'optimistic' or 'strict', got %q", b.NonceMode)
	}
	return nil
}

// Credentials builds the explicit Credentials value the core client
// constructor takes, parsing the string-keyed api_keys map into the
// typed ApiKeyIndex form.
func (b *Bundle) Credentials() (Credentials, error) {
	keys := make(map[types.ApiKeyIndex]string, len(b.Account.ApiKeys))
	for idxStr, key := range b.Account.ApiKeys {
		idx, err := strconv.ParseInt(idxStr, 10, 32)
		if err != nil {
			return Credentials{}, fmt.Errorf("account.api_keys: invalid index %q: %w", idxStr, err)
		}
		keys[types.ApiKeyIndex(idx)] = key
	}
	return Credentials{AccountId: types.AccountId(b.Account.AccountId), ApiKeys: keys}, nil
}

// NonceManagerMode translates the configured string mode to nonce.Mode.
func (b *Bundle) NonceManagerMode() nonce.Mode {
	if b.NonceMode == "strict" {
		return nonce.ModeStrict
	}
	return nonce.ModeOptimistic
}

// ConnectTimeout is a fixed 10-second dial timeout value. Neither
// transport reads it: the REST client sets its own 10-second request
// timeout and the WebSocket client dials with gorilla/websocket's
// default dialer.
const ConnectTimeout = 10 * time.Second
