package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the agent runtime: the agent
// process itself, the local inference backend it drives, and the
// optional Execution History Store.
type Config struct {
	Agent            AgentConfig            `yaml:"agent"`
	Ollama           OllamaBackendConfig    `yaml:"ollama"`
	ExecutionHistory ExecutionHistoryConfig `yaml:"execution_history"`
}

// Load reads the configuration file at path, resolving $include
// directives, applying defaults and environment overrides, and
// validating the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = "."
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "agentd"
	}
	if cfg.Agent.Logging.Level == "" {
		cfg.Agent.Logging.Level = "info"
	}
	if cfg.Agent.Logging.MaxLogSize == 0 {
		cfg.Agent.Logging.MaxLogSize = 10 * 1024 * 1024
	}
	if cfg.Agent.Logging.BackupCount == 0 {
		cfg.Agent.Logging.BackupCount = 3
	}
	if cfg.Agent.Security.MaxFileSize == 0 {
		cfg.Agent.Security.MaxFileSize = 10 * 1024 * 1024
	}

	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "localhost"
	}
	if cfg.Ollama.Port == 0 {
		cfg.Ollama.Port = 11434
	}
	if cfg.Ollama.KeepAlive == "" {
		cfg.Ollama.KeepAlive = "5m"
	}
	if cfg.Ollama.NumCtx == 0 {
		cfg.Ollama.NumCtx = 4096
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = 60 * time.Second
	}
	if cfg.Ollama.PlanningTimeout == 0 {
		cfg.Ollama.PlanningTimeout = 180 * time.Second
	}
	if cfg.Ollama.ExecutionTimeout == 0 {
		cfg.Ollama.ExecutionTimeout = 240 * time.Second
	}
}

// applyEnvOverrides applies the small set of environment overrides the
// agent runtime recognizes, mirroring the teacher's NEXUS_* override
// convention (config.go's original applyEnvOverrides) narrowed to the
// keys this runtime's Config actually has.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTD_WORKSPACE")); v != "" {
		cfg.Agent.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTD_OLLAMA_HOST")); v != "" {
		cfg.Ollama.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTD_OLLAMA_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Ollama.Port = port
		}
	}
}

// ConfigValidationError reports one or more configuration problems found
// while validating a loaded Config.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Issues, "; "))
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.Agent.Security.MaxFileSize < 0 {
		issues = append(issues, "agent.security.max_file_size must be >= 0")
	}
	if cfg.Ollama.Port <= 0 || cfg.Ollama.Port > 65535 {
		issues = append(issues, "ollama.port must be between 1 and 65535")
	}
	if cfg.Ollama.Temperature < 0 {
		issues = append(issues, "ollama.temperature must be >= 0")
	}
	for name, rl := range cfg.Agent.Security.RateLimits {
		if rl.RequestsPerMinute < 0 {
			issues = append(issues, fmt.Sprintf("agent.security.rate_limits.%s.requests_per_minute must be >= 0", name))
		}
		if rl.Burst < 0 {
			issues = append(issues, fmt.Sprintf("agent.security.rate_limits.%s.burst must be >= 0", name))
		}
	}
	if q := cfg.Agent.Security.ResourceQuotas; q.MaxCPUPercent < 0 || q.MaxCPUPercent > 100 {
		issues = append(issues, "agent.security.resource_quotas.max_cpu_percent must be between 0 and 100")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
