package config

import "time"

// AgentConfig configures the local-first LLM agent runtime (see
// internal/agentic/orchestrator.Runtime).
type AgentConfig struct {
	Workspace string             `yaml:"workspace"`
	Name      string             `yaml:"name"`
	Security  AgentSecurityConfig `yaml:"security"`
	Logging   AgentLoggingConfig  `yaml:"logging"`
}

// AgentSecurityConfig bounds tool-call resource usage for the agent
// runtime, per SPEC_FULL.md §6.
type AgentSecurityConfig struct {
	MaxFileSize    int64                  `yaml:"max_file_size"`
	RateLimits     map[string]RateLimit   `yaml:"rate_limits"`
	ResourceQuotas AgentResourceQuotas    `yaml:"resource_quotas"`
}

// RateLimit is a simple requests-per-window limit for one tool name.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// AgentResourceQuotas bounds process resource consumption during tool
// dispatch.
type AgentResourceQuotas struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent"`
	MaxMemoryMB   int     `yaml:"max_memory_mb"`
	MaxDiskMB     int     `yaml:"max_disk_mb"`
}

// AgentLoggingConfig configures the agent runtime's own log file
// rotation, distinct from the gateway's LoggingConfig.
type AgentLoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxLogSize int    `yaml:"max_log_size"`
	BackupCount int   `yaml:"backup_count"`
}

// OllamaBackendConfig configures the local inference backend the agent
// runtime's Model Manager and executors call through internal/backend.
type OllamaBackendConfig struct {
	Host             string              `yaml:"host"`
	Port             int                 `yaml:"port"`
	Model            string              `yaml:"model"`
	KeepAlive        string              `yaml:"keep_alive"`
	NumCtx           int                 `yaml:"num_ctx"`
	NumPredict       int                 `yaml:"num_predict"`
	Temperature      float64             `yaml:"temperature"`
	Timeout          time.Duration       `yaml:"timeout"`
	PlanningTimeout  time.Duration       `yaml:"planning_timeout"`
	ExecutionTimeout time.Duration       `yaml:"execution_timeout"`
	MultiModel       OllamaMultiModel    `yaml:"multi_model"`
}

// OllamaMultiModel binds the three logical model roles to concrete
// backend model names and configures streaming behavior.
type OllamaMultiModel struct {
	Models    OllamaModelRoles      `yaml:"models"`
	Streaming OllamaStreamingConfig `yaml:"streaming"`
}

// OllamaModelRoles names the concrete model for each logical role.
type OllamaModelRoles struct {
	Reasoning OllamaModelRef `yaml:"reasoning"`
	Execution OllamaModelRef `yaml:"execution"`
	Fixer     OllamaModelRef `yaml:"fixer"`
}

// OllamaModelRef names one concrete backend model.
type OllamaModelRef struct {
	Name string `yaml:"name"`
}

// OllamaStreamingConfig toggles streaming display behavior.
type OllamaStreamingConfig struct {
	Enabled        bool `yaml:"enabled"`
	ShowThinking   bool `yaml:"show_thinking"`
	UseRichProgress bool `yaml:"use_rich_progress"`
}

// ExecutionHistoryConfig toggles the Execution History Store (C13).
type ExecutionHistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}
