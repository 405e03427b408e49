// Package protocol defines the wire-level constants, error codes, and the
// client abstraction consumed by the execution engine. The session layer
// (authentication, token framing) lives behind the Client interface; the
// engine only ever sends output, status, and error messages through it.
package protocol

// TokenMaxData is the largest payload the session layer will carry in a
// single token. Output caps are derived from it.
const TokenMaxData = 65536

// MaxOutput is the largest payload of a single protocol v2 output message:
// TokenMaxData less the message overhead (version and type octets, stream
// octet, four-octet length, margin).
const MaxOutput = TokenMaxData - 11

// MaxOutputV1 is the hard cap on the total output returned for a protocol
// v1 command: TokenMaxData less the four-octet status and four-octet
// length fields.
const MaxOutputV1 = TokenMaxData - 8

// Output stream tags for protocol v2 output messages.
const (
	StreamStdout = 1
	StreamStderr = 2
)

// ErrorCode identifies the failure class carried in an error message.
// The values are fixed on the wire; 2 through 4 are reserved by the
// session layer.
type ErrorCode int

// Error codes emitted by the engine.
const (
	ErrInternal       ErrorCode = 1
	ErrBadCommand     ErrorCode = 5
	ErrUnknownCommand ErrorCode = 6
	ErrAccess         ErrorCode = 7
	ErrToomanyArgs    ErrorCode = 8
	ErrNoHelp         ErrorCode = 10
)

// String returns the conventional name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInternal:
		return "INTERNAL"
	case ErrBadCommand:
		return "BAD_COMMAND"
	case ErrUnknownCommand:
		return "UNKNOWN_COMMAND"
	case ErrAccess:
		return "ACCESS"
	case ErrToomanyArgs:
		return "TOOMANY_ARGS"
	case ErrNoHelp:
		return "NO_HELP"
	default:
		return "UNKNOWN"
	}
}

// Message returns the canonical human-readable message for the code, as
// sent to clients alongside the code itself.
func (c ErrorCode) Message() string {
	switch c {
	case ErrInternal:
		return "Internal failure"
	case ErrBadCommand:
		return "Invalid command token"
	case ErrUnknownCommand:
		return "Unknown command"
	case ErrAccess:
		return "Access denied"
	case ErrToomanyArgs:
		return "Too many arguments for help command"
	case ErrNoHelp:
		return "No help defined for command"
	default:
		return "Unknown error"
	}
}

// Client is the engine's view of an authenticated session. Identity
// accessors report what the session layer established during
// authentication; the Send methods emit protocol messages back to the
// peer.
//
// SendOutput and SendStatus are protocol v2 and later; SendOutputV1
// carries the combined output buffer and exit status of a v1 command in
// one message. The engine picks based on Protocol().
type Client interface {
	// User returns the authenticated principal.
	User() string

	// IPAddress returns the textual address of the peer.
	IPAddress() string

	// Hostname returns the DNS name of the peer, or "" when unknown.
	Hostname() string

	// Protocol returns the negotiated protocol version, 1 or greater.
	Protocol() int

	// SendOutput sends one output message tagged with the given stream
	// (StreamStdout or StreamStderr). Protocol v2 and later only.
	SendOutput(stream int, data []byte) error

	// SendStatus sends the final exit-status message. Protocol v2 and
	// later only.
	SendStatus(status int) error

	// SendOutputV1 sends the combined output and exit status of a
	// protocol v1 command in a single message.
	SendOutputV1(data []byte, status int) error

	// SendError sends an error message with the given code.
	SendError(code ErrorCode, message string) error
}
