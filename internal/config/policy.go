package config

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PawnPolicy holds the business knobs that operators tune without a redeploy.
type PawnPolicy struct {
	MaxLoanToValuePercent float64 `mapstructure:"maxLoanToValuePercent"`
	DefaultInterestRate   float64 `mapstructure:"defaultInterestRate"`
	AllowOverpayment      bool    `mapstructure:"allowOverpayment"`
}

func DefaultPawnPolicy() PawnPolicy {
	return PawnPolicy{
		MaxLoanToValuePercent: 100,
		DefaultInterestRate:   2,
		AllowOverpayment:      false,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PawnPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy PawnPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pawn")
	v.SetConfigType("yml")
	if cfg.PolicyPath != "" {
		v.AddConfigPath(filepath.Dir(cfg.PolicyPath))
	}
	v.AddConfigPath("/etc/pawnshop")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAWNSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPawnPolicy()
	v.SetDefault("pawn.maxLoanToValuePercent", defaults.MaxLoanToValuePercent)
	v.SetDefault("pawn.defaultInterestRate", defaults.DefaultInterestRate)
	v.SetDefault("pawn.allowOverpayment", defaults.AllowOverpayment)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var policy PawnPolicy
	if err := v.UnmarshalKey("pawn", &policy); err != nil {
		return nil, err
	}
	if err := validatePawnPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PawnPolicy
		if err := v.UnmarshalKey("pawn", &updated); err != nil {
			zap.L().Warn("pawn policy reload failed", zap.Error(err))
			return
		}
		if err := validatePawnPolicy(updated); err != nil {
			zap.L().Warn("invalid pawn policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("pawn policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PawnPolicy {
	if h == nil {
		return DefaultPawnPolicy()
	}
	return h.current.Load().(PawnPolicy)
}

func validatePawnPolicy(p PawnPolicy) error {
	if p.MaxLoanToValuePercent <= 0 || p.MaxLoanToValuePercent > 100 {
		return errors.New("pawn.maxLoanToValuePercent must be within (0, 100]")
	}
	if p.DefaultInterestRate < 0 {
		return errors.New("pawn.defaultInterestRate cannot be negative")
	}
	return nil
}
