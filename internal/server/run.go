package server

import (
	"errors"
	"time"

	"github.com/sigmaris/remctl/internal/acl"
	"github.com/sigmaris/remctl/internal/audit"
	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
	"github.com/sigmaris/remctl/internal/protocol"
)

// helpCommand is the reserved command token that routes to help and
// summary handling when no rule claims it.
const helpCommand = "help"

// Engine executes requests against a rule table. An Engine serves one
// request at a time; the rule table is read-only for the lifetime of a
// request.
type Engine struct {
	cfg      *config.Config
	auditLog *audit.Logger

	// permit decides ACL access for a rule; replaceable in tests.
	permit func(*config.Rule, string) bool
}

// New creates an Engine over a rule table. The audit logger may be nil
// to disable the audit trail.
func New(cfg *config.Config, auditLog *audit.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		auditLog: auditLog,
		permit:   acl.Permit,
	}
}

// Run processes one incoming command: validates it, resolves a rule,
// checks access, executes the program, and emits the terminating
// protocol message. reqID identifies the request in the audit trail and
// may be empty. args holds the raw argument chunks; chunk 0 is the
// command and chunk 1, if present, the subcommand.
//
// Nothing is ever sent to the client before a rule has matched and
// access has been granted, except for error messages.
func (e *Engine) Run(client protocol.Client, reqID string, args [][]byte) {
	user := client.User()

	if len(args) == 0 {
		clog.Info("empty command from user %s", user)
		e.sendError(client, protocol.ErrBadCommand)
		return
	}

	// Neither the command nor the subcommand may ever contain NULs.
	for i := 0; i < len(args) && i < 2; i++ {
		if hasNUL(args[i]) {
			which := "command"
			if i == 1 {
				which = "subcommand"
			}
			clog.Info("%s from user %s contains nul octet", which, user)
			e.sendError(client, protocol.ErrBadCommand)
			return
		}
	}

	command := string(args[0])
	var subcommand *string
	if len(args) > 1 {
		s := string(args[1])
		subcommand = &s
	}

	// Find the rule to run. A help command that matches nothing itself
	// dispatches to the summary listing when bare, or re-resolves with
	// the named command and subcommand when specific help was asked for.
	help := false
	var helpSubcommand *string
	rule := resolve(e.cfg, &command, subcommand)
	if rule == nil && command == helpCommand {
		if len(args) > 3 {
			clog.Info("help command from user %s has more than three arguments", user)
			e.sendError(client, protocol.ErrToomanyArgs)
		}
		if subcommand == nil {
			e.sendSummary(client, reqID)
			return
		}
		help = true
		if len(args) > 2 {
			s := string(args[2])
			helpSubcommand = &s
		}
		rule = resolve(e.cfg, subcommand, helpSubcommand)
	}

	// Arguments may only contain NULs if they're the one being passed on
	// standard input.
	for i := 1; i < len(args); i++ {
		if rule != nil {
			if !help && i == rule.StdinArg {
				continue
			}
			if i == len(args)-1 && rule.StdinArg == config.StdinLastArg {
				continue
			}
		}
		if hasNUL(args[i]) {
			clog.Info("argument %d from user %s contains nul octet", i, user)
			e.sendError(client, protocol.ErrBadCommand)
			return
		}
	}

	// Log after rule lookup so argument masking can apply.
	logCmd := audit.RenderCommand(args, rule)
	_ = e.auditLog.LogCommand(user, client.IPAddress(), reqID, logCmd)

	if rule == nil {
		clog.Info("unknown command %s from user %s", logCmd, user)
		_ = e.auditLog.LogUnknown(user, client.IPAddress(), reqID, logCmd)
		e.sendError(client, protocol.ErrUnknownCommand)
		return
	}
	if !e.permit(rule, user) {
		clog.Info("access denied: user %s, command %s", user, logCmd)
		_ = e.auditLog.LogDeny(user, client.IPAddress(), reqID, logCmd, "access denied")
		e.sendError(client, protocol.ErrAccess)
		return
	}

	proc := &process{
		client:   client,
		rule:     rule,
		command:  command,
		stdinout: -1,
		stderrFd: -1,
	}
	if help {
		if rule.Help == "" {
			clog.Info("command %s from user %s has no defined help", command, user)
			e.sendError(client, protocol.ErrNoHelp)
			return
		}
		proc.argv = buildHelpArgv(rule, helpSubcommand)
	} else {
		proc.argv = buildCommandArgv(rule, args, proc)
	}

	started := time.Now()
	if ok := e.execute(proc); ok {
		if client.Protocol() == 1 {
			_ = client.SendOutputV1(proc.output, proc.status)
		} else {
			_ = client.SendStatus(proc.status)
		}
		_ = e.auditLog.LogComplete(user, client.IPAddress(), reqID, logCmd,
			proc.status, time.Since(started))
	}
}

// execute launches the child and runs the I/O pump, guaranteeing the
// child is reaped and all parent-side descriptors are closed on every
// path. Returns whether a terminating status should be sent.
func (e *Engine) execute(proc *process) bool {
	err := proc.start()
	if errors.Is(err, errCannotExec) {
		// The child never ran; report canonical status -1 with no
		// output rather than an internal failure.
		return true
	}
	if err != nil {
		return false
	}
	ok := proc.pump()
	proc.closeFds()
	proc.waitReaped()
	proc.close()
	return ok
}

// sendError emits an error message with the code's canonical text.
func (e *Engine) sendError(client protocol.Client, code protocol.ErrorCode) {
	_ = client.SendError(code, code.Message())
}
