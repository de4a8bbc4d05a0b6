package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanPricing describes one platform billing plan vendors can be on.
type PlanPricing struct {
	PlanType       string  `mapstructure:"planType"`
	MonthlyCents   int64   `mapstructure:"monthlyCents"`
	AnnualCents    int64   `mapstructure:"annualCents"`
	TransactionFee float64 `mapstructure:"transactionFee"`
	StripePriceID  string  `mapstructure:"stripePriceId"`
}

// PricingConfig is the platform-plan price table.
type PricingConfig struct {
	Plans []PlanPricing `mapstructure:"plans"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Plans: []PlanPricing{
			{PlanType: "free", MonthlyCents: 0, AnnualCents: 0, TransactionFee: 0.05},
			{PlanType: "pro", MonthlyCents: 2900, AnnualCents: 29000, TransactionFee: 0.01},
		},
	}
}

// PricingHolder keeps the current pricing table behind an atomic swap so a
// config reload never tears a read in a concurrent request handler.
type PricingHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingHolder() (*PricingHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/studio")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.plans", defaults.Plans)
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// Plan returns pricing for a plan type, if configured.
func (h *PricingHolder) Plan(planType string) (PlanPricing, bool) {
	for _, plan := range h.Get().Plans {
		if strings.EqualFold(plan.PlanType, planType) {
			return plan, true
		}
	}
	return PlanPricing{}, false
}

func validatePricingConfig(cfg PricingConfig) error {
	if len(cfg.Plans) == 0 {
		return errors.New("pricing.plans cannot be empty")
	}
	return nil
}
