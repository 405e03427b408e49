package server

import (
	"golang.org/x/sys/unix"

	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/protocol"
)

// pump drives the child's standard input, output, and error streams
// until the child has been reaped and its buffered output drained.
//
// For protocol v2 and later, each readable event becomes one tagged
// output message of at most protocol.MaxOutput bytes. For protocol v1,
// output accumulates in p.output up to protocol.MaxOutputV1 and is sent
// by the dispatcher together with the exit status.
//
// Returns false when an error broke the loop; the dispatcher then skips
// the final status message.
func (p *process) pump() bool {
	buf := make([]byte, protocol.MaxOutput)

	// Blocking phase: runs until the waiter posts the child's exit.
	for !p.reaped {
		if !p.pollOnce(-1, buf) {
			return false
		}
	}

	// Exit status in hand is not the end of output: bytes the child
	// wrote before dying may still sit in kernel buffers. Iterate
	// nonblocking for as long as iterations keep producing output
	// events.
	for {
		p.sawOutput = false
		if !p.pollOnce(0, buf) {
			return false
		}
		if !p.sawOutput {
			return true
		}
	}
}

// pollOnce runs a single iteration of the event loop: one poll with the
// given timeout, then one handling pass over whatever fired.
func (p *process) pollOnce(timeout int, buf []byte) bool {
	fds := make([]unix.PollFd, 0, 3)
	inoutIdx, stderrIdx, exitIdx := -1, -1, -1

	if p.inoutRead || p.inoutWrite {
		var events int16
		if p.inoutRead {
			events |= unix.POLLIN
		}
		if p.inoutWrite {
			events |= unix.POLLOUT
		}
		inoutIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(p.stdinout), Events: events})
	}
	if p.stderrRead {
		stderrIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(p.stderrFd), Events: unix.POLLIN})
	}
	if p.exitPending {
		exitIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(p.exitR.Fd()), Events: unix.POLLIN})
	}
	if len(fds) == 0 {
		return true
	}

	n, err := unix.Poll(fds, timeout)
	if err == unix.EINTR || err == unix.EAGAIN {
		return true
	}
	if err != nil {
		clog.Warn("process event loop failed: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return false
	}
	if n == 0 {
		return true
	}

	if inoutIdx >= 0 {
		revents := fds[inoutIdx].Revents
		if p.inoutWrite && revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0 {
			if !p.writeStdin() {
				return false
			}
		}
		if p.inoutRead && revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if !p.readOutput(p.stdinout, protocol.StreamStdout, buf) {
				return false
			}
		}
	}
	if stderrIdx >= 0 && p.stderrRead {
		if fds[stderrIdx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if !p.readOutput(p.stderrFd, protocol.StreamStderr, buf) {
				return false
			}
		}
	}
	if exitIdx >= 0 && fds[exitIdx].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
		// The waiter wrote after recording the status; the channel
		// receive orders that write before our read of p.status.
		<-p.done
		p.reaped = true
		p.exitPending = false
	}
	return true
}

// writeStdin feeds the next chunk of the stdin payload to the child.
// When the payload is exhausted, the write half of the socket pair shuts
// down so the child sees EOF.
func (p *process) writeStdin() bool {
	n, err := unix.Write(p.stdinout, p.stdin[p.stdinOff:])
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR:
			return true
		case unix.EPIPE, unix.ECONNRESET:
			// The child went away without reading its input. Same as
			// EOF except we also stop writing.
			p.inoutRead = false
			p.inoutWrite = false
			return true
		}
		clog.Warn("write to standard input failed: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return false
	}

	p.stdinOff += n
	if p.stdinOff >= len(p.stdin) {
		p.inoutWrite = false
		if err := unix.Shutdown(p.stdinout, unix.SHUT_WR); err != nil {
			clog.Warn("cannot shut down input side of process socket pair: %v", err)
			_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
			return false
		}
	}
	return true
}

// readOutput handles one readable event on an output endpoint.
func (p *process) readOutput(fd, stream int, buf []byte) bool {
	n, err := unix.Read(fd, buf)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR:
			return true
		case unix.ECONNRESET, unix.EPIPE:
			p.disableEndpoint(fd)
			return true
		}
		clog.Warn("read from process failed: %v", err)
		_ = p.client.SendError(protocol.ErrInternal, protocol.ErrInternal.Message())
		return false
	}
	if n == 0 {
		// EOF on this endpoint; others may still be live.
		p.disableRead(fd)
		return true
	}

	p.sawOutput = true
	if p.client.Protocol() == 1 {
		p.accumulateV1(buf[:n])
		return true
	}
	if err := p.client.SendOutput(stream, buf[:n]); err != nil {
		clog.Warn("sending output to client: %v", err)
		return false
	}
	return true
}

// accumulateV1 collects protocol v1 output up to the hard cap, then
// discards; the child is allowed to keep running and producing output.
func (p *process) accumulateV1(data []byte) {
	if p.discarding {
		return
	}
	p.output = append(p.output, data...)
	if len(p.output) >= protocol.MaxOutputV1 {
		p.output = p.output[:protocol.MaxOutputV1]
		p.discarding = true
	}
}

// disableRead stops read events on the endpoint owning fd.
func (p *process) disableRead(fd int) {
	if fd == p.stdinout {
		p.inoutRead = false
	} else {
		p.stderrRead = false
	}
}

// disableEndpoint stops all events on the endpoint owning fd.
func (p *process) disableEndpoint(fd int) {
	if fd == p.stdinout {
		p.inoutRead = false
		p.inoutWrite = false
	} else {
		p.stderrRead = false
	}
}
