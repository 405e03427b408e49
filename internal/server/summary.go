package server

import (
	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
	"github.com/sigmaris/remctl/internal/protocol"
)

// sendSummary serves a bare help request by running the summary
// subcommand of every rule that declares one, is a "<command> ALL" line,
// and the user may access. For protocol v1 all output is concatenated
// into one response; the aggregate status is 0 unless some invocation
// failed, in which case it is the status of the last failing one.
func (e *Engine) sendSummary(client protocol.Client, reqID string) {
	user := client.User()
	_ = e.auditLog.LogSummary(user, client.IPAddress(), reqID)

	var output []byte
	statusAll := 0
	okAny := false

	for _, rule := range e.cfg.Rules {
		if rule.Subcommand != config.MatchAll {
			continue
		}
		if !e.permit(rule, user) {
			continue
		}
		if rule.Summary == "" {
			continue
		}
		okAny = true

		proc := &process{
			client:   client,
			rule:     rule,
			command:  rule.Summary,
			argv:     buildSummaryArgv(rule),
			stdinout: -1,
			stderrFd: -1,
		}
		if ok := e.execute(proc); ok {
			if client.Protocol() == 1 {
				output = append(output, proc.output...)
			}
			if proc.status != 0 {
				statusAll = proc.status
			}
		}
	}

	if !okAny {
		clog.Info("summary request from user %s, but no defined summaries", user)
		e.sendError(client, protocol.ErrUnknownCommand)
		return
	}
	if client.Protocol() == 1 {
		_ = client.SendOutputV1(output, statusAll)
	} else {
		_ = client.SendStatus(statusAll)
	}
}
