// Package acl evaluates access control lists for remctld rules. Each
// rule carries an ordered list of entries; the first entry that matches
// the requesting principal decides the outcome, and a list that matches
// nothing denies.
//
// Entry syntax:
//   - "anyuser"      matches any authenticated principal
//   - "deny:<entry>" inverts the nested entry: a match denies access
//   - "file:<path>"  reads entries from a file, one per line, with
//     blank lines and # comments ignored
//   - anything else  is a literal principal name
package acl

import (
	"os"
	"strings"

	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
)

// maxFileDepth bounds file: includes to keep reference cycles from
// recursing forever.
const maxFileDepth = 20

// Permit reports whether the user may run commands under the rule. An
// unreadable ACL file is logged and treated as matching nothing, so a
// broken include can never widen access.
func Permit(rule *config.Rule, user string) bool {
	decided, allowed := evalEntries(rule.ACL, user, 0)
	return decided && allowed
}

// evalEntries walks entries in order. Returns (true, verdict) on the
// first match, (false, false) when nothing matched.
func evalEntries(entries []string, user string, depth int) (decided, allowed bool) {
	for _, entry := range entries {
		matched, verdict := evalEntry(entry, user, depth)
		if matched {
			return true, verdict
		}
	}
	return false, false
}

// evalEntry evaluates one entry. Returns whether it matched the user and
// the verdict when it did.
func evalEntry(entry, user string, depth int) (matched, verdict bool) {
	entry = strings.TrimSpace(entry)
	switch {
	case entry == "" || strings.HasPrefix(entry, "#"):
		return false, false

	case entry == "anyuser":
		return true, true

	case strings.HasPrefix(entry, "deny:"):
		m, _ := evalEntry(strings.TrimPrefix(entry, "deny:"), user, depth)
		if m {
			return true, false
		}
		return false, false

	case strings.HasPrefix(entry, "file:"):
		return evalFile(strings.TrimPrefix(entry, "file:"), user, depth)

	default:
		return entry == user, true
	}
}

// evalFile evaluates the entries contained in an ACL file.
func evalFile(path, user string, depth int) (matched, verdict bool) {
	if depth >= maxFileDepth {
		clog.Warn("acl: file include depth exceeded at %s", path)
		return false, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		clog.Warn("acl: cannot read %s: %v", path, err)
		return false, false
	}
	decided, allowed := evalEntries(strings.Split(string(data), "\n"), user, depth+1)
	return decided, allowed
}
