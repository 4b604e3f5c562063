package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CodeAndHammer/learngames/internal/store"
	"github.com/CodeAndHammer/learngames/internal/throttle"
	"github.com/CodeAndHammer/learngames/internal/util"
)

// Config is the server and CLI configuration read from the environment.
type Config struct {
	Env          string
	IsProduction bool
	Port         string

	DefaultProfile string

	CookieMaxAge   time.Duration
	StaticDir      string
	StaticCacheAge time.Duration

	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTTL     time.Duration

	Store store.Options

	LockPollInterval time.Duration
	DefaultPolicy    throttle.Policy
	ActionPolicies   map[string]throttle.Policy
	PolicyFile       string
}

// policyFile is the YAML layout of THROTTLE_POLICY_FILE.
type policyFile struct {
	Default *throttle.Policy           `yaml:"default"`
	Actions map[string]throttle.Policy `yaml:"actions"`
}

// Load reads the environment. Call godotenv.Load first to pick up a .env
// file.
func Load() (Config, error) {
	env := util.GetEnvString("ENV", "development")
	cfg := Config{
		Env:            env,
		IsProduction:   os.Getenv("GIN_MODE") == "release" || env == "production",
		Port:           util.GetEnvString("PORT", "8080"),
		DefaultProfile: util.GetEnvString("DEFAULT_PROFILE", "default"),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 24*time.Hour),
		StaticDir:      util.GetEnvString("STATIC_DIR", "static"),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", time.Hour),
		SessionTTL:     util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
		Store: store.Options{
			Driver:    util.GetEnvString("STORE_DRIVER", store.DriverMemory),
			DSN:       util.GetEnvString("STORE_DSN", ""),
			RedisAddr: util.GetEnvString("REDIS_ADDR", ""),
		},
		LockPollInterval: util.GetEnvDuration("LOCK_POLL_INTERVAL", time.Second),
		DefaultPolicy: throttle.Policy{
			ActionLimit: util.GetEnvInt("LOCK_ACTION_LIMIT", throttle.DefaultActionLimit),
			Cooldown:    util.GetEnvDuration("LOCK_COOLDOWN", throttle.DefaultCooldown),
		}.Normalize(),
		ActionPolicies: map[string]throttle.Policy{},
		PolicyFile:     util.GetEnvString("THROTTLE_POLICY_FILE", ""),
	}

	if cfg.LockPollInterval <= 0 {
		cfg.LockPollInterval = time.Second
	}

	profile, ok := throttle.NormalizeName(cfg.DefaultProfile)
	if !ok {
		return Config{}, fmt.Errorf("invalid DEFAULT_PROFILE %q: use 1-32 of a-z, 0-9, '_' or '-'", cfg.DefaultProfile)
	}
	cfg.DefaultProfile = profile

	if cfg.PolicyFile != "" {
		def, actions, err := LoadPolicies(cfg.PolicyFile)
		if err != nil {
			return Config{}, err
		}
		if def != nil {
			cfg.DefaultPolicy = def.Normalize()
		}
		cfg.ActionPolicies = actions
	}
	return cfg, nil
}

// LoadPolicies reads per-action throttle policies from a YAML file:
//
//	default:
//	  action_limit: 3
//	  cooldown: 20m
//	actions:
//	  print:
//	    action_limit: 2
//	    cooldown: 30m
func LoadPolicies(path string) (*throttle.Policy, map[string]throttle.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("parse policy file: %w", err)
	}
	actions := make(map[string]throttle.Policy, len(pf.Actions))
	for name, p := range pf.Actions {
		if !throttle.ValidName(name) {
			return nil, nil, fmt.Errorf("policy file: invalid action name %q", name)
		}
		actions[name] = p.Normalize()
	}
	return pf.Default, actions, nil
}
