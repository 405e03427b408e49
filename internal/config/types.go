// Package config provides the rule table for remctld. Rules bind a
// command and subcommand pair to a program, an ACL, and execution
// metadata. The table maps to a YAML configuration file.
package config

// Wildcard sentinels usable in a rule's command or subcommand slot.
// MatchAll matches any token or a missing one, in either slot;
// MatchEmpty matches only a missing token.
const (
	MatchAll   = "ALL"
	MatchEmpty = "EMPTY"
)

// StdinLastArg is the stdin_arg sentinel meaning "the last argument of
// the request", resolved against the actual argument count at request
// time.
const StdinLastArg = -1

// Config is the parsed rule table. Order is authoritative: the first
// matching rule wins.
type Config struct {
	Rules []*Rule `yaml:"rules"`
}

// Rule is one configured command binding. It is immutable after load and
// shared read-only across requests.
type Rule struct {
	// Command and Subcommand are the match keys. Either may be the
	// MatchAll or MatchEmpty sentinel.
	Command    string `yaml:"command"`
	Subcommand string `yaml:"subcommand"`

	// Program is the absolute path of the executable to run.
	Program string `yaml:"program"`

	// ACL lists the access control entries evaluated for this rule.
	// Entry syntax is defined by the acl package.
	ACL []string `yaml:"acl"`

	// RunAs names a local account to switch to before exec. Empty means
	// no identity change.
	RunAs string `yaml:"run_as,omitempty"`

	// StdinArg designates the argument fed to the child's standard
	// input: 0 for none, a positive 1-based position, or StdinLastArg
	// for the last argument of the request.
	StdinArg int `yaml:"stdin_arg,omitempty"`

	// Summary, if set, is the subcommand invoked to produce a one-line
	// description of this rule for a bare help request.
	Summary string `yaml:"summary,omitempty"`

	// Help, if set, is the subcommand invoked for help on a specific
	// command.
	Help string `yaml:"help,omitempty"`

	// MaskArgs lists 1-based argument positions whose values are masked
	// in the audit log.
	MaskArgs []int `yaml:"mask_args,omitempty"`

	// RunAsUID and RunAsGID are resolved from RunAs at load time. Both
	// are zero when RunAs is empty.
	RunAsUID int `yaml:"-"`
	RunAsGID int `yaml:"-"`
}

// MasksArg reports whether the 1-based argument position is masked in
// the audit log for this rule.
func (r *Rule) MasksArg(pos int) bool {
	for _, m := range r.MaskArgs {
		if m == pos {
			return true
		}
	}
	return false
}
