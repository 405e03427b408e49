// Package server implements the remctld command execution engine: rule
// resolution, request validation, child process launch, and the I/O pump
// that streams command output back to the client.
package server

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
	"github.com/sigmaris/remctl/internal/protocol"
)

// errCannotExec marks a launch failure caused by the configured program
// itself (missing, not executable). The client sees canonical status -1
// rather than an internal error, and nothing about the program is
// revealed.
var errCannotExec = errors.New("cannot execute command")

// process tracks one child process serving a request, together with the
// parent-side descriptors and the state the I/O pump operates on.
type process struct {
	client  protocol.Client
	rule    *config.Rule
	command string   // command token exported as REMCTL_COMMAND
	argv    []string // argv[0] is the program basename
	stdin   []byte   // payload for the child's standard input, nil when none

	cmd      *exec.Cmd
	stdinout int // parent side of the stdin/stdout socket pair
	stderrFd int // parent side of the stderr pair, -1 for protocol v1

	// exitR/exitW funnel child exit into the poll loop: the waiter
	// goroutine reaps the child, then writes one byte.
	exitR *os.File
	exitW *os.File
	done  chan struct{} // closed by the waiter after status is recorded

	status    int  // canonical exit status, valid once reaped
	reaped    bool // whether the waiter has reaped the child
	sawOutput bool // edge trigger for the post-exit drain loop

	// output accumulates protocol v1 output up to protocol.MaxOutputV1;
	// discarding flips once the cap is hit.
	output     []byte
	discarding bool

	stdinOff    int // bytes of stdin already written
	inoutRead   bool
	inoutWrite  bool
	stderrRead  bool
	exitPending bool // exit pipe still armed
}

// lookupGroups resolves the supplementary groups of an account.
// Overridable in tests.
var lookupGroups = func(name string) ([]uint32, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	ids, err := u.GroupIds()
	if err != nil {
		return nil, err
	}
	groups := make([]uint32, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("group id %q for user %s: %w", id, name, err)
		}
		groups = append(groups, uint32(n))
	}
	return groups, nil
}

// start creates the socket pairs, launches the child with its descriptor,
// environment, and identity setup, and leaves the parent holding
// nonblocking parent-side ends. On errCannotExec the process is marked
// reaped with canonical status -1 and no descriptors remain open. Any
// other error has already been reported to the client as an internal
// failure.
func (p *process) start() error {
	separateStderr := p.client.Protocol() > 1

	// Stream socket pairs rather than pipes: the stdin/stdout channel is
	// bidirectional, and the pump shuts down its write half to deliver
	// EOF while continuing to read.
	inout, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		clog.Warn("cannot create stdin and stdout socket pair: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return fmt.Errorf("socketpair: %w", err)
	}
	stderrPair := [2]int{-1, -1}
	if separateStderr {
		stderrPair, err = unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			unix.Close(inout[0])
			unix.Close(inout[1])
			clog.Warn("cannot create stderr socket pair: %v", err)
			_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
			return fmt.Errorf("socketpair: %w", err)
		}
	}

	childInout := os.NewFile(uintptr(inout[1]), "child stdinout")
	var childStderr *os.File
	if separateStderr {
		childStderr = os.NewFile(uintptr(stderrPair[1]), "child stderr")
	}
	closeAll := func() {
		unix.Close(inout[0])
		childInout.Close()
		if separateStderr {
			unix.Close(stderrPair[0])
			childStderr.Close()
		}
	}

	cmd := &exec.Cmd{
		Path: p.rule.Program,
		Args: p.argv,
		Env:  p.childEnv(),
	}

	// Feed the designated argument on stdin; without one the child reads
	// /dev/null (os/exec default for a nil Stdin) and sees immediate EOF.
	if p.stdin != nil {
		cmd.Stdin = childInout
	}
	cmd.Stdout = childInout
	if separateStderr {
		cmd.Stderr = childStderr
	} else {
		cmd.Stderr = childInout
	}

	// Identity drop happens between fork and exec via process
	// credentials. Supplementary groups are resolved here in the parent;
	// initgroups is not available after fork.
	if p.rule.RunAs != "" && p.rule.RunAsUID > 0 {
		groups, err := lookupGroups(p.rule.RunAs)
		if err != nil {
			closeAll()
			clog.Warn("cannot resolve groups for %s: %v", p.rule.RunAs, err)
			_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
			return fmt.Errorf("lookup groups: %w", err)
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Credential: &syscall.Credential{
				Uid:    uint32(p.rule.RunAsUID),
				Gid:    uint32(p.rule.RunAsGID),
				Groups: groups,
			},
		}
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		if isExecFailure(err) {
			// Do not reveal anything about the command to the client.
			clog.Warn("cannot execute command: %v", err)
			p.status = -1
			p.reaped = true
			return errCannotExec
		}
		clog.Warn("cannot fork: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return fmt.Errorf("start child: %w", err)
	}
	p.cmd = cmd

	// The child holds duplicates of its ends now; release ours so EOF
	// propagates when the child exits.
	childInout.Close()
	if separateStderr {
		childStderr.Close()
	}

	p.stdinout = inout[0]
	p.stderrFd = stderrPair[0]
	unix.SetNonblock(p.stdinout, true)
	if separateStderr {
		unix.SetNonblock(p.stderrFd, true)
	}

	p.exitR, p.exitW, err = os.Pipe()
	if err != nil {
		// The child is already running; reap it before giving up.
		p.closeFds()
		_, _ = cmd.Process.Wait()
		clog.Warn("cannot create exit pipe: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return fmt.Errorf("exit pipe: %w", err)
	}

	p.inoutRead = true
	p.inoutWrite = p.stdin != nil
	p.stderrRead = separateStderr
	p.exitPending = true
	p.done = make(chan struct{})

	go p.waiter()
	return nil
}

// waiter reaps the child and posts its exit through the exit pipe. This
// funnels process-wide SIGCHLD delivery into the per-request poll loop,
// keeping concurrent engine instances separable.
func (p *process) waiter() {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		clog.Warn("waiting for child %d: %v", p.cmd.Process.Pid, err)
		p.status = -1
	} else {
		// ExitCode is already canonical: the exit code on normal exit,
		// -1 when the child was killed by a signal.
		p.status = p.cmd.ProcessState.ExitCode()
	}
	if p.exitW != nil {
		_, _ = p.exitW.Write([]byte{1})
	}
	close(p.done)
}

// waitReaped blocks until the waiter has reaped the child, preventing a
// zombie on pump failure paths. No-op when the child never started or
// was already reaped.
func (p *process) waitReaped() {
	if p.reaped || p.done == nil {
		return
	}
	<-p.done
	p.reaped = true
}

// closeFds closes the parent-side descriptors. Safe to call more than
// once.
func (p *process) closeFds() {
	if p.stdinout >= 0 {
		unix.Close(p.stdinout)
		p.stdinout = -1
	}
	if p.stderrFd >= 0 {
		unix.Close(p.stderrFd)
		p.stderrFd = -1
	}
}

// close releases every parent-side resource of the request.
func (p *process) close() {
	p.closeFds()
	if p.exitR != nil {
		p.exitR.Close()
		p.exitR = nil
	}
	if p.exitW != nil {
		p.exitW.Close()
		p.exitW = nil
	}
}

// childEnv builds the environment contract handed to user commands. The
// variable names are fixed: commands depend on them.
func (p *process) childEnv() []string {
	env := append(os.Environ(),
		"REMUSER="+p.client.User(),
		"REMOTE_USER="+p.client.User(),
		"REMOTE_ADDR="+p.client.IPAddress(),
	)
	if host := p.client.Hostname(); host != "" {
		env = append(env, "REMOTE_HOST="+host)
	}
	return append(env, "REMCTL_COMMAND="+p.command)
}

// isExecFailure reports whether a Start error indicates the program
// could not be executed, as opposed to a resource failure in the parent.
func isExecFailure(err error) bool {
	// Failures between fork and exec (descriptor setup, credential
	// changes, the exec itself) come back as a PathError and mean the
	// command never ran. Resource exhaustion is the parent's problem,
	// not the command's, and stays an internal error.
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		var errno syscall.Errno
		if errors.As(pathErr.Err, &errno) {
			switch errno {
			case unix.EAGAIN, unix.ENOMEM, unix.ENFILE, unix.EMFILE:
				return false
			}
		}
		return true
	}
	return false
}
