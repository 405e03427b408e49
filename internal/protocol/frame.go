package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Message types. The values match the original wire protocol.
const (
	MessageCommand = 1
	MessageQuit    = 2
	MessageOutput  = 3
	MessageStatus  = 4
	MessageError   = 5
	MessageVersion = 6
)

// Protocol version spoken by this implementation for v2-style messages.
const Version = 2

// Errors returned by the frame codec.
var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrShortMessage   = errors.New("message truncated")
	ErrBadMessageType = errors.New("unexpected message type")
)

// WriteMessage writes a single length-prefixed message. The payload must
// already contain the version and type octets.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > TokenMaxData {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads a single length-prefixed message, rejecting frames
// larger than TokenMaxData.
func ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > TokenMaxData {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodeOutput builds a MESSAGE_OUTPUT payload carrying one chunk of
// command output tagged with its stream.
func EncodeOutput(stream int, data []byte) []byte {
	buf := make([]byte, 0, 7+len(data))
	buf = append(buf, Version, MessageOutput, byte(stream))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// EncodeStatus builds a MESSAGE_STATUS payload with the canonical exit
// status. The status is truncated to one octet on the wire, so -1 is
// carried as 255 and recovered by the signed conversion on decode.
func EncodeStatus(status int) []byte {
	return []byte{Version, MessageStatus, byte(status)}
}

// EncodeError builds a MESSAGE_ERROR payload.
func EncodeError(code ErrorCode, message string) []byte {
	buf := make([]byte, 0, 10+len(message))
	buf = append(buf, Version, MessageError)
	buf = binary.BigEndian.AppendUint32(buf, uint32(code))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(message)))
	return append(buf, message...)
}

// EncodeOutputV1 builds the single protocol v1 response carrying the exit
// status and the combined output buffer. V1 messages have no version or
// type octets.
func EncodeOutputV1(data []byte, status int) []byte {
	buf := make([]byte, 0, 8+len(data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(status))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// EncodeCommand builds a MESSAGE_COMMAND payload from argument chunks.
// The engine is on the receiving end of this message; the encoder exists
// for clients and tests.
func EncodeCommand(keepAlive bool, args [][]byte) []byte {
	size := 8
	for _, a := range args {
		size += 4 + len(a)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, Version, MessageCommand)
	if keepAlive {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, 0) // continue status: no fragmentation locally
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(args)))
	for _, a := range args {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(a)))
		buf = append(buf, a...)
	}
	return buf
}

// Command is a decoded MESSAGE_COMMAND.
type Command struct {
	KeepAlive bool
	Args      [][]byte
}

// DecodeCommand parses a MESSAGE_COMMAND payload.
func DecodeCommand(payload []byte) (*Command, error) {
	if len(payload) < 8 {
		return nil, ErrShortMessage
	}
	if payload[1] != MessageCommand {
		return nil, ErrBadMessageType
	}
	cmd := &Command{KeepAlive: payload[2] != 0}
	argc := binary.BigEndian.Uint32(payload[4:8])
	rest := payload[8:]
	for i := uint32(0); i < argc; i++ {
		if len(rest) < 4 {
			return nil, ErrShortMessage
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return nil, ErrShortMessage
		}
		cmd.Args = append(cmd.Args, rest[:n:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode command: %d trailing bytes", len(rest))
	}
	return cmd, nil
}
