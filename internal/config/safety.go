package config

// SafetyConfig configures the Four-Layer Safety Gate (C8).
type SafetyConfig struct {
	AutoApproveMinScore uint8    `yaml:"auto_approve_min_score"`
	AutoApproveContexts []string `yaml:"auto_approve_contexts"`
	BackupRetention     int      `yaml:"backup_retention"`
	ApprovalTimeoutSec  int      `yaml:"approval_timeout_sec"` // 0 = unbounded
}

// SandboxConfig configures the Sandbox Validator (C9).
type SandboxConfig struct {
	WallBudgetSec int64  `yaml:"wall_budget_sec"`
	NanoCPUs      int64  `yaml:"nano_cpus"`
	MemoryMB      int64  `yaml:"memory_mb"`
	NetworkMode   string `yaml:"network_mode"` // "none" or "loopback"
}
