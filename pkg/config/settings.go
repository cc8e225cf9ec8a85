// Package config resolves mcpmuxd's process-level configuration: the
// persisted settings table ("a persisted settings table with
// well-known keys") layered under environment-variable overrides, the way
// the teacher's cmd/thv binds cobra flags through viper
// (cmd/thv/app/commands.go's viper.BindPFlag pattern).
package config

import (
	"context"
	"strconv"

	"github.com/spf13/viper"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Well-known settings-table keys.
const (
	KeyLogRetentionDays  = "log_retention_days"
	KeyGatewayPort       = "gateway_port"
	KeyOAuthCallbackPort = "oauth_callback_port"
)

// Defaults per 
const (
	DefaultGatewayPort       = 45818
	DefaultOAuthCallbackPort = 45819
	DefaultLogRetentionDays  = 0
)

// Environment variable overrides, restricted to these two port overrides,
// used for testing.
const (
	envGatewayPort       = "MCPMUX_GATEWAY_PORT"
	envOAuthCallbackPort = "MCPMUX_OAUTH_CALLBACK_PORT"
)

// Settings is the resolved, effective configuration: persisted settings
// overridden by environment variables, which are themselves overridden by
// nothing — env vars win, matching "overrides... for testing".
type Settings struct {
	GatewayPort       int
	OAuthCallbackPort int
	LogRetentionDays  int
}

// Resolve loads Settings from the persisted settings repository, applying
// defaults for unset keys and environment-variable overrides on top.
func Resolve(ctx context.Context, repo domain.SettingsRepository) (Settings, error) {
	v := viper.New()
	v.SetDefault(KeyGatewayPort, DefaultGatewayPort)
	v.SetDefault(KeyOAuthCallbackPort, DefaultOAuthCallbackPort)
	v.SetDefault(KeyLogRetentionDays, DefaultLogRetentionDays)

	_ = v.BindEnv(KeyGatewayPort, envGatewayPort)
	_ = v.BindEnv(KeyOAuthCallbackPort, envOAuthCallbackPort)

	if err := loadPersistedInt(ctx, repo, KeyGatewayPort, v); err != nil {
		return Settings{}, err
	}
	if err := loadPersistedInt(ctx, repo, KeyOAuthCallbackPort, v); err != nil {
		return Settings{}, err
	}
	if err := loadPersistedInt(ctx, repo, KeyLogRetentionDays, v); err != nil {
		return Settings{}, err
	}

	return Settings{
		GatewayPort:       v.GetInt(KeyGatewayPort),
		OAuthCallbackPort: v.GetInt(KeyOAuthCallbackPort),
		LogRetentionDays:  v.GetInt(KeyLogRetentionDays),
	}, nil
}

// loadPersistedInt overlays a persisted settings-table value onto v's
// default for key, leaving the default (and any env override, which
// BindEnv makes take precedence regardless of SetDefault) untouched when
// nothing is persisted yet or the stored value doesn't parse.
func loadPersistedInt(ctx context.Context, repo domain.SettingsRepository, key string, v *viper.Viper) error {
	persisted, ok, err := repo.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if n, perr := strconv.Atoi(persisted); perr == nil {
		v.SetDefault(key, n)
	}
	return nil
}

// Persist writes the given Settings back to the settings repository, e.g.
// after a dynamic OAuth-callback-port fallback is chosen at runtime so the
// next startup reuses whichever port was actually bound.
func Persist(ctx context.Context, repo domain.SettingsRepository, s Settings) error {
	if err := repo.Set(ctx, KeyGatewayPort, strconv.Itoa(s.GatewayPort)); err != nil {
		return err
	}
	if err := repo.Set(ctx, KeyOAuthCallbackPort, strconv.Itoa(s.OAuthCallbackPort)); err != nil {
		return err
	}
	return repo.Set(ctx, KeyLogRetentionDays, strconv.Itoa(s.LogRetentionDays))
}
