package server

import (
	"testing"

	"github.com/sigmaris/remctl/internal/config"
)

func strp(s string) *string { return &s }

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name       string
		ruleCmd    string
		ruleSub    string
		command    *string
		subcommand *string
		want       bool
	}{
		{"literal both", "test", "closed", strp("test"), strp("closed"), true},
		{"literal command mismatch", "test", "closed", strp("other"), strp("closed"), false},
		{"literal sub mismatch", "test", "closed", strp("test"), strp("open"), false},
		{"ALL subcommand", "foo", "ALL", strp("foo"), strp("bar"), true},
		{"ALL subcommand no sub", "foo", "ALL", strp("foo"), nil, true},
		{"ALL command", "ALL", "ALL", strp("anything"), strp("else"), true},
		{"ALL matches missing command", "ALL", "ALL", nil, nil, true},
		{"EMPTY matches missing sub", "empty", "EMPTY", strp("empty"), nil, true},
		{"EMPTY rejects present sub", "empty", "EMPTY", strp("empty"), strp("x"), false},
		{"EMPTY rejects empty string sub", "empty", "EMPTY", strp("empty"), strp(""), false},
		{"EMPTY command matches absence", "EMPTY", "ALL", nil, nil, true},
		{"EMPTY command rejects presence", "EMPTY", "ALL", strp("x"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &config.Rule{Command: tt.ruleCmd, Subcommand: tt.ruleSub}
			if got := ruleMatches(r, tt.command, tt.subcommand); got != tt.want {
				t.Errorf("ruleMatches(%s %s, %v, %v) = %v, want %v",
					tt.ruleCmd, tt.ruleSub, tt.command, tt.subcommand, got, tt.want)
			}
		})
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	first := &config.Rule{Command: "foo", Subcommand: "ALL", Program: "/bin/first"}
	second := &config.Rule{Command: "foo", Subcommand: "bar", Program: "/bin/second"}
	cfg := &config.Config{Rules: []*config.Rule{first, second}}

	if got := resolve(cfg, strp("foo"), strp("bar")); got != first {
		t.Errorf("resolve() = %v, want first rule", got)
	}
}

func TestResolveNoMatch(t *testing.T) {
	cfg := &config.Config{Rules: []*config.Rule{
		{Command: "foo", Subcommand: "bar"},
	}}
	if got := resolve(cfg, strp("baz"), nil); got != nil {
		t.Errorf("resolve() = %v, want nil", got)
	}
}
