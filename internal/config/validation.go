package config

import "fmt"

var validTransports = map[string]bool{
	"worker":    true,
	"websocket": true,
	"memory":    true,
}

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateLimits(&cfg.Limits); err != nil {
		return err
	}
	if err := validateComponents(&cfg.Components); err != nil {
		return err
	}
	if err := validateDiagnostics(&cfg.Diagnostics); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Transport == "" {
		return fmt.Errorf("server.transport cannot be empty")
	}
	if !validTransports[cfg.Transport] {
		return fmt.Errorf("server.transport must be one of worker, websocket, memory; got %q", cfg.Transport)
	}
	return nil
}

func validateLimits(cfg *LimitsConfig) error {
	if cfg.MaxPendingCalls < 0 {
		return fmt.Errorf("limits.max_pending_calls cannot be negative")
	}
	if cfg.CallTimeoutSecs < 0 {
		return fmt.Errorf("limits.call_timeout_secs cannot be negative")
	}
	if cfg.MaxQueuedOnSend < 0 {
		return fmt.Errorf("limits.max_queued_on_send cannot be negative")
	}
	return nil
}

func validateComponents(cfg *ComponentsConfig) error {
	seen := make(map[string]bool, len(cfg.Preload))
	for _, name := range cfg.Preload {
		if name == "" {
			return fmt.Errorf("components.preload contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("components.preload lists %q more than once", name)
		}
		seen[name] = true
	}
	return nil
}

func validateDiagnostics(cfg *DiagnosticsConfig) error {
	if cfg.Enabled && cfg.DBPath == "" {
		return fmt.Errorf("diagnostics.db_path cannot be empty when diagnostics.enabled is true")
	}
	return nil
}
