package server

import (
	"bytes"
	"strings"

	"github.com/sigmaris/remctl/internal/config"
)

// hasNUL reports whether the chunk contains a NUL octet.
func hasNUL(chunk []byte) bool {
	return bytes.IndexByte(chunk, 0) >= 0
}

// basename returns the part of path after the final slash, or the whole
// string when it has none. Used as argv[0] for launched programs.
func basename(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// stdinPosition resolves a rule's stdin_arg against the actual argument
// count of a request. The StdinLastArg sentinel becomes the index of the
// last argument; 0 means no argument is fed on stdin.
func stdinPosition(rule *config.Rule, argCount int) int {
	if rule.StdinArg == config.StdinLastArg {
		return argCount - 1
	}
	return rule.StdinArg
}

// buildCommandArgv assembles the argv for a normal command from the
// request chunks, splicing out the argument designated for the child's
// standard input (stored on the process instead). Empty chunks become
// empty strings.
func buildCommandArgv(rule *config.Rule, args [][]byte, p *process) []string {
	stdinArg := stdinPosition(rule, len(args))
	argv := make([]string, 0, len(args))
	argv = append(argv, basename(rule.Program))
	for i := 1; i < len(args); i++ {
		if i == stdinArg {
			p.stdin = args[i]
			continue
		}
		argv = append(argv, string(args[i]))
	}
	return argv
}

// buildHelpArgv assembles the argv for a help request: the program
// basename, the rule's help subcommand, and the client's original
// subcommand when one was given.
func buildHelpArgv(rule *config.Rule, helpSubcommand *string) []string {
	argv := []string{basename(rule.Program), rule.Help}
	if helpSubcommand != nil {
		argv = append(argv, *helpSubcommand)
	}
	return argv
}

// buildSummaryArgv assembles the argv for one summary invocation.
func buildSummaryArgv(rule *config.Rule) []string {
	return []string{basename(rule.Program), rule.Summary}
}
