package config

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/sigmaris/remctl/internal/clog"
)

// lookupUser resolves an account name to uid and gid. Overridable in
// tests so configs can reference accounts that don't exist on the test
// host.
var lookupUser = func(name string) (uid, gid int, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("uid %q for user %s: %w", u.Uid, name, err)
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("gid %q for user %s: %w", u.Gid, name, err)
	}
	return uid, gid, nil
}

// Load reads, parses, and validates the rule table at path, then
// resolves every run_as account to its uid and gid. A missing file is an
// error: a command server with no rules serves nothing.
func Load(path string) (*Config, error) {
	clog.Debug("config: loading rule table from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	for i, r := range cfg.Rules {
		if r.RunAs == "" {
			continue
		}
		uid, gid, err := lookupUser(r.RunAs)
		if err != nil {
			return nil, fmt.Errorf("load config %s: rules[%d] (%s): run_as: %w", path, i, r.Command, err)
		}
		r.RunAsUID = uid
		r.RunAsGID = gid
	}

	clog.Info("config: loaded %d rules from %s", len(cfg.Rules), path)
	return cfg, nil
}
