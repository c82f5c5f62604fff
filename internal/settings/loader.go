package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrInvalidRule is returned when the config contains an unusable rule
var ErrInvalidRule = errors.New("invalid rule")

// Config file lookup
const (
	ConfigName = "sweeper"
	ConfigType = "toml"
	EnvPrefix  = "SWEEPER"
)

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.retries", 3)
	v.SetDefault("output.max_rules_per_file", 50000)
	v.SetDefault("pending.path", "")
	v.SetDefault("containers", []string{"firefox-default"})
	v.SetDefault("fallback_rule", models.CleanupLeave.String())
	v.SetDefault("domain_leave.enabled", true)
	v.SetDefault("domain_leave.types", DefaultDataTypes())
	v.SetDefault("instantly.enabled", true)
	v.SetDefault("instantly.types", DefaultDataTypes())
	v.SetDefault("startup.enabled", true)
	v.SetDefault("startup.types", DefaultDataTypes())
	v.SetDefault("clean_third_party_cookies.before_creation", false)
}

// Configure points v at the config file (explicit path, or the default search paths)
func Configure(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType(ConfigType)
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load reads the config file if present and decodes it.
// A missing config file is not an error: defaults apply.
func Load(v *viper.Viper) (models.Config, error) {
	var cfg models.Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := Decode(v, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode unmarshals v into cfg and validates the inline rules
func Decode(v *viper.Viper, cfg *models.Config) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	var errs []error
	for i, r := range cfg.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: rules[%d]: %w", ErrInvalidRule, i, err))
		}
	}
	return errors.Join(errs...)
}

// Watch decodes the config again on every file change and hands it to onChange.
// Invalid configs are logged and dropped. onChange runs on the watcher goroutine;
// callers that need single-threaded replacement should forward it to their event loop.
func Watch(v *viper.Viper, onChange func(models.Config), log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg models.Config
		if err := Decode(v, &cfg); err != nil {
			log.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}
