package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{Version, MessageStatus, 0}

	if err := WriteMessage(&buf, payload); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadMessage() = %v, want %v", got, payload)
	}
}

func TestWriteMessageTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, make([]byte, TokenMaxData+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("WriteMessage() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadMessageOversizeFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := ReadMessage(buf); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("ReadMessage() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	args := [][]byte{
		[]byte("store"),
		[]byte("-"),
		{0x00, 0x01, 0xff}, // stdin payloads may carry arbitrary bytes
		{},
	}

	cmd, err := DecodeCommand(EncodeCommand(true, args))
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if !cmd.KeepAlive {
		t.Error("KeepAlive = false, want true")
	}
	if len(cmd.Args) != len(args) {
		t.Fatalf("len(Args) = %d, want %d", len(cmd.Args), len(args))
	}
	for i := range args {
		if !bytes.Equal(cmd.Args[i], args[i]) {
			t.Errorf("Args[%d] = %v, want %v", i, cmd.Args[i], args[i])
		}
	}
}

func TestDecodeCommandTruncated(t *testing.T) {
	msg := EncodeCommand(false, [][]byte{[]byte("test")})
	for _, cut := range []int{3, 9, len(msg) - 1} {
		if _, err := DecodeCommand(msg[:cut]); err == nil {
			t.Errorf("DecodeCommand(%d bytes) succeeded, want error", cut)
		}
	}
}

func TestDecodeCommandWrongType(t *testing.T) {
	if _, err := DecodeCommand(EncodeStatus(0)); !errors.Is(err, ErrShortMessage) && !errors.Is(err, ErrBadMessageType) {
		t.Errorf("DecodeCommand(status message) error = %v, want type or length error", err)
	}
}

func TestEncodeStatusNegative(t *testing.T) {
	payload := EncodeStatus(-1)
	if got := int(int8(payload[2])); got != -1 {
		t.Errorf("decoded status = %d, want -1", got)
	}
}

func TestErrorCodeStrings(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrInternal, "INTERNAL"},
		{ErrBadCommand, "BAD_COMMAND"},
		{ErrUnknownCommand, "UNKNOWN_COMMAND"},
		{ErrAccess, "ACCESS"},
		{ErrToomanyArgs, "TOOMANY_ARGS"},
		{ErrNoHelp, "NO_HELP"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}
