package config

import (
	"fmt"
	"net"
)

// Validate checks a Config for obvious operator mistakes and fills in
// derived defaults before returning.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.SyncPort <= 0 || cfg.SyncPort > 65535 {
		return fmt.Errorf("%s must be in range (0, 65535]", envSyncPort)
	}
	for _, addr := range cfg.Peers {
		if err := validateHostPort(addr); err != nil {
			return fmt.Errorf("%s: %q: %w", envPeers, addr, err)
		}
	}
	if cfg.MyAddress != "" {
		if err := validateHostPort(cfg.MyAddress); err != nil {
			return fmt.Errorf("%s: %w", envMyAddress, err)
		}
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		cfg.Log.Level = "info"
	default:
		return fmt.Errorf("log level must be debug, info, warn, or error")
	}
	return nil
}

// validateHostPort checks that addr is a host:port pair with an IPv4 or
// IPv6 host.
func validateHostPort(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("not a host:port pair: %w", err)
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("host %q is not a valid IPv4 or IPv6 address", host)
	}
	return nil
}
