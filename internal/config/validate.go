package config

import (
	"fmt"
	"path/filepath"
)

// Validate checks a parsed Config, returning an error naming the first
// invalid rule and field. It validates:
//   - Command and Subcommand are non-empty
//   - Program is an absolute path
//   - ACL has at least one entry
//   - StdinArg is 0, positive, or StdinLastArg
//   - MaskArgs positions are positive
//
// RunAs resolution happens at load, not here, so Validate stays usable
// on configs that reference accounts absent from the test environment.
func Validate(cfg *Config) error {
	for i, r := range cfg.Rules {
		if r == nil {
			return fmt.Errorf("rules[%d]: empty rule", i)
		}
		if r.Command == "" {
			return fmt.Errorf("rules[%d]: command is required", i)
		}
		if r.Subcommand == "" {
			return fmt.Errorf("rules[%d] (%s): subcommand is required", i, r.Command)
		}
		if r.Program == "" {
			return fmt.Errorf("rules[%d] (%s): program is required", i, r.Command)
		}
		if !filepath.IsAbs(r.Program) {
			return fmt.Errorf("rules[%d] (%s): program %q must be an absolute path", i, r.Command, r.Program)
		}
		if len(r.ACL) == 0 {
			return fmt.Errorf("rules[%d] (%s): acl is required", i, r.Command)
		}
		if r.StdinArg < StdinLastArg {
			return fmt.Errorf("rules[%d] (%s): stdin_arg must be -1, 0, or a positive position, got %d", i, r.Command, r.StdinArg)
		}
		for _, m := range r.MaskArgs {
			if m < 1 {
				return fmt.Errorf("rules[%d] (%s): mask_args positions must be positive, got %d", i, r.Command, m)
			}
		}
	}
	return nil
}
