package config

// PermissionConfig holds the auto-approve table the Approval Policy
// consults before falling back to run mode.
type PermissionConfig struct {
	// AutoApprove names tools that skip the human prompt entirely,
	// regardless of run mode - useful for read-only tools a user has
	// decided they never want to be asked about.
	AutoApprove map[string]bool `mapstructure:"auto_approve"`
}

// DefaultPermissionConfig auto-approves the read-only builtin tools.
func DefaultPermissionConfig() PermissionConfig {
	return PermissionConfig{
		AutoApprove: map[string]bool{
			"file_read":      true,
			"grep":           true,
			"web_search":     true,
			"summarize_text": true,
			"calculator":     true,
		},
	}
}
