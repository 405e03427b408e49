package config

import (
	"os"
	"path/filepath"

	"github.com/sigmaris/remctl/internal/pathutil"
)

// DefaultConfigPath returns the rule table path: $REMCTLD_CONFIG if set,
// otherwise /etc/remctl/remctld.yaml. A leading ~ is expanded.
func DefaultConfigPath() string {
	if p := os.Getenv("REMCTLD_CONFIG"); p != "" {
		return pathutil.ExpandHome(p)
	}
	return filepath.Join("/etc", "remctl", "remctld.yaml")
}
