package server

import "github.com/sigmaris/remctl/internal/config"

// ruleMatches reports whether a rule matches the given command and
// subcommand tokens, either of which may be absent (nil). MatchAll in a
// rule slot matches any token, including a missing one; MatchEmpty
// matches only absence.
func ruleMatches(r *config.Rule, command, subcommand *string) bool {
	okay := false
	switch {
	case r.Command == config.MatchAll:
		okay = true
	case command != nil && r.Command == *command:
		okay = true
	case command == nil && r.Command == config.MatchEmpty:
		okay = true
	}
	if !okay {
		return false
	}
	switch {
	case r.Subcommand == config.MatchAll:
		return true
	case subcommand != nil && r.Subcommand == *subcommand:
		return true
	case subcommand == nil && r.Subcommand == config.MatchEmpty:
		return true
	}
	return false
}

// resolve returns the first rule matching the command and subcommand, or
// nil when none matches. Configuration order is authoritative.
func resolve(cfg *config.Config, command, subcommand *string) *config.Rule {
	for _, r := range cfg.Rules {
		if ruleMatches(r, command, subcommand) {
			return r
		}
	}
	return nil
}
