package config

import "time"

type Config struct {
	// MaxAttempts bounds the failover loop: at most this many providers
	// are tried for a single generation request.
	MaxAttempts int
	// ProviderPriority is the fixed global ordering used by selection.
	// Providers not listed here sort after every listed one.
	ProviderPriority []string
	PollInterval     time.Duration
	PollMaxAttempts  int
	ProbeTimeout     time.Duration
}

func NewConfig() *Config {
	return &Config{
		MaxAttempts:      4,
		ProviderPriority: []string{"stablediffusion", "kieai", "photai", "gemini"},
		PollInterval:     5 * time.Second,
		PollMaxAttempts:  20,
		ProbeTimeout:     5 * time.Second,
	}
}
