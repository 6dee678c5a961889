package gatttool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	assert.Equal(t, "char-desc", CharDesc(""))
	assert.Equal(t, "char-desc 0x0005", CharDesc("0x0005"))
	assert.Equal(t, "char-read-hnd 0x0003", CharReadHandle("0x0003"))
}

func TestCleanLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain row", input: "handle: 0x0001, uuid: 2800", expected: "handle: 0x0001, uuid: 2800"},
		{name: "carriage return", input: "handle: 0x0001, uuid: 2800\r", expected: "handle: 0x0001, uuid: 2800"},
		{name: "connected prompt residue", input: "[CON][AA:BB:CC:DD:EE:FF][LE]> handle: 0x0002, uuid: 2803", expected: "handle: 0x0002, uuid: 2803"},
		{name: "disconnected prompt residue", input: "[   ][AA:BB:CC:DD:EE:FF][LE]> handle: 0x0002, uuid: 2803", expected: "handle: 0x0002, uuid: 2803"},
		{name: "bluez5 prompt residue", input: "[AA:BB:CC:DD:EE:FF][LE]> handle: 0x0002, uuid: 2803", expected: "handle: 0x0002, uuid: 2803"},
		{name: "escape sequences", input: "\x1b[0;94m[AA:BB:CC:DD:EE:FF][LE]>\x1b[0m handle: 0x0002, uuid: 2803", expected: "handle: 0x0002, uuid: 2803"},
		{name: "prompt only", input: "[CON][AA:BB:CC:DD:EE:FF][LE]> ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanLine(tt.input))
		})
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("handle: 0x0001, uuid: 2800\r\nhandle: 0x0002, uuid: 2803\n[CON][AA:BB:CC:DD:EE:FF][LE]> ")

	assert.Equal(t, []string{"handle: 0x0001, uuid: 2800", "handle: 0x0002, uuid: 2803"}, lines)
	assert.Empty(t, SplitLines("no newline yet"))
}

func TestParseAttributeLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		handle string
		uuid   string
	}{
		{name: "16-bit", line: "handle: 0x0001, uuid: 2800", handle: "0x0001", uuid: "2800"},
		{name: "uppercase", line: "handle: 0x001A, uuid: 2A00", handle: "0x001a", uuid: "2a00"},
		{name: "sig base 128-bit", line: "handle: 0x0010, uuid: 00002a37-0000-1000-8000-00805f9b34fb", handle: "0x0010", uuid: "2a37"},
		{name: "vendor 128-bit", line: "handle: 0x0020, uuid: 6E400001-B5A3-F393-E0A9-E50E24DCCA9E", handle: "0x0020", uuid: "6e400001-b5a3-f393-e0a9-e50e24dcca9e"},
		{name: "prompt residue", line: "[CON][AA:BB:CC:DD:EE:FF][LE]> handle: 0x0003, uuid: 2a00", handle: "0x0003", uuid: "2a00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, uuid, err := ParseAttributeLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.handle, handle)
			assert.Equal(t, tt.uuid, uuid)
		})
	}
}

func TestParseAttributeLine_Malformed(t *testing.T) {
	for _, line := range []string{
		"handle: 0x0001",
		"handle: 0001, uuid: 2800",
		"handle: 0x0001, uuid: zz00",
		"handle 0x0001 uuid 2800",
	} {
		t.Run(line, func(t *testing.T) {
			_, _, err := ParseAttributeLine(line)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "error MUST be a *ParseError")
			assert.NotEmpty(t, parseErr.Line)
		})
	}
}

func TestIsAttributeLine(t *testing.T) {
	assert.True(t, IsAttributeLine("handle: 0x0001, uuid: 2800"))
	assert.False(t, IsAttributeLine("char-desc 0x0005"))
	assert.False(t, IsAttributeLine(""))
}

func TestAttributeRowMarker(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		row   string
		match bool
	}{
		{"start of output", "handle: 0x0001, uuid: 2800\r\n", "handle: 0x0001, uuid: 2800", true},
		{"after a line", "char-desc\r\nhandle: 0x0002, uuid: 2803\r\n", "handle: 0x0002, uuid: 2803", true},
		{"after a redisplayed prompt", "[CON][AA:BB][LE]> handle: 0x0003, uuid: 2a00\r\n", "handle: 0x0003, uuid: 2a00", true},
		{"malformed row", "handle: 0x00zz\n", "handle: 0x00zz", true},
		{"unfinished row", "handle: 0x0004, uuid: 28", "", false},
		{"handle inside a message", "Invalid start handle: zz\r\n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AttributeRowMarker.FindStringSubmatch(tt.text)
			if !tt.match {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.row, m[1])
		})
	}
}

func TestParseOctets(t *testing.T) {
	octets, err := ParseOctets(" 00 18 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"00", "18"}, octets)

	octets, err = ParseOctets(" 0A FF")
	require.NoError(t, err)
	assert.Equal(t, []string{"0a", "ff"}, octets)

	octets, err = ParseOctets(" ")
	require.NoError(t, err)
	assert.NotNil(t, octets, "empty payload MUST yield a non-nil slice")
	assert.Empty(t, octets)

	_, err = ParseOctets(" 0 18")
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestNormalizeUUID(t *testing.T) {
	tests := map[string]string{
		"2800":                                 "2800",
		"0x2A00":                               "2a00",
		" 2A01 ":                               "2a01",
		"0000180D-0000-1000-8000-00805F9B34FB": "180d",
		"0000180d-0000-1000-8000-00805f9b34fc": "0000180d-0000-1000-8000-00805f9b34fc",
		"6e400001-b5a3-f393-e0a9-e50e24dcca9e": "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
		"":                                     "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, NormalizeUUID(input), "input %q", input)
	}
}

func TestErrors(t *testing.T) {
	connectErr := &ConnectError{Address: "AA:BB:CC:DD:EE:FF", Reason: "Connection refused (111)"}
	assert.Equal(t, "failed to connect to AA:BB:CC:DD:EE:FF: Connection refused (111)", connectErr.Error())

	wrapped := &ConnectError{Address: "AA:BB:CC:DD:EE:FF", Err: ErrTimeout}
	assert.ErrorIs(t, wrapped, ErrTimeout)

	readErr := &ReadFailedError{Handle: "0x0003", Reason: "Attribute can't be read"}
	assert.Equal(t, "read of handle 0x0003 failed: Attribute can't be read", readErr.Error())

	parseErr := &ParseError{Reason: "empty page"}
	assert.Equal(t, "parse error: empty page", parseErr.Error())
}
