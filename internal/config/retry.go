package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/filmbilling/pkg/httpclient"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff applied to outbound calls.
type RetryPolicy struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

type RetryPolicyHolder struct {
	current atomic.Value // holds RetryPolicy
}

// NewStaticRetryPolicyHolder returns a holder that never reloads.
func NewStaticRetryPolicyHolder(policy RetryPolicy) *RetryPolicyHolder {
	holder := &RetryPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewRetryPolicyHolder(log *zap.Logger) (*RetryPolicyHolder, error) {
	log = log.Named("retry-config")
	v := viper.New()

	v.SetConfigName("retry")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/filmbilling")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FILMBILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRetryPolicy()
	v.SetDefault("retry.initial_interval", defaults.InitialInterval)
	v.SetDefault("retry.multiplier", defaults.Multiplier)
	v.SetDefault("retry.max_interval", defaults.MaxInterval)
	v.SetDefault("retry.max_elapsed_time", getenvDuration("BACKOFF_MAX_TIME_SEC", defaults.MaxElapsedTime))

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy RetryPolicy
	if err := v.UnmarshalKey("retry", &policy); err != nil {
		return nil, err
	}
	if err := validateRetryPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticRetryPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RetryPolicy
		if err := v.UnmarshalKey("retry", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateRetryPolicy(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RetryPolicyHolder) Get() RetryPolicy {
	if h == nil {
		return DefaultRetryPolicy()
	}
	return h.current.Load().(RetryPolicy)
}

// Backoff adapts the current policy for pkg/httpclient. Safe on a nil holder.
func (h *RetryPolicyHolder) Backoff() httpclient.Backoff {
	policy := h.Get()
	return httpclient.Backoff{
		InitialInterval: policy.InitialInterval,
		Multiplier:      policy.Multiplier,
		MaxInterval:     policy.MaxInterval,
		MaxElapsedTime:  policy.MaxElapsedTime,
	}
}

func validateRetryPolicy(p RetryPolicy) error {
	if p.InitialInterval <= 0 {
		return errors.New("retry.initial_interval must be positive")
	}
	if p.Multiplier < 1 {
		return errors.New("retry.multiplier must be >= 1")
	}
	if p.MaxInterval < p.InitialInterval {
		return errors.New("retry.max_interval must be >= initial_interval")
	}
	if p.MaxElapsedTime <= 0 {
		return errors.New("retry.max_elapsed_time must be positive")
	}
	return nil
}

func getenvDuration(key string, def time.Duration) time.Duration {
	seconds := getenvInt(key, 0)
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
