package testutils

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultPeripheralAddress is used when the builder is given no address.
const DefaultPeripheralAddress = "AA:BB:CC:DD:EE:FF"

type mockAttribute struct {
	uuid    string
	value   []byte
	readErr string
}

// PeripheralBuilder describes a simulated peripheral and produces a console
// that answers like "gatttool -b <addr> --interactive" connected to it.
//
// Basic usage:
//
//	console := testutils.NewPeripheralBuilder().
//	    WithService(0x0001, 0x1800).
//	    WithCharacteristic(0x0002, 0x02, 0x2a00, []byte("demo")).
//	    Build()
//	session := gatttool.NewSession(console, nil)
type PeripheralBuilder struct {
	address         string
	attributes      *orderedmap.OrderedMap[uint16, *mockAttribute]
	pageSize        int
	connectError    string
	redisplayPrompt bool
	bluez5Prompt    bool
	endMarker       bool
	silent          []string
}

// NewPeripheralBuilder creates a builder for an empty peripheral with a page size of 5.
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{
		address:    DefaultPeripheralAddress,
		attributes: orderedmap.New[uint16, *mockAttribute](),
		pageSize:   5,
		endMarker:  true,
	}
}

// WithAddress sets the hardware address shown in prompts.
func (b *PeripheralBuilder) WithAddress(address string) *PeripheralBuilder {
	b.address = address
	return b
}

// WithAttribute adds a raw attribute. uuid is printed verbatim by char-desc.
func (b *PeripheralBuilder) WithAttribute(handle uint16, uuid string, value ...byte) *PeripheralBuilder {
	b.attributes.Set(handle, &mockAttribute{uuid: uuid, value: value})
	return b
}

// WithService adds a primary service declaration for a 16-bit service UUID.
func (b *PeripheralBuilder) WithService(handle, serviceUUID uint16) *PeripheralBuilder {
	return b.WithAttribute(handle, "2800", le16(serviceUUID)...)
}

// WithCharacteristic adds a declaration at handle and its value at handle+1.
func (b *PeripheralBuilder) WithCharacteristic(handle uint16, props byte, valueUUID uint16, value []byte) *PeripheralBuilder {
	decl := append([]byte{props}, le16(handle+1)...)
	decl = append(decl, le16(valueUUID)...)
	b.WithAttribute(handle, "2803", decl...)
	return b.WithAttribute(handle+1, fmt.Sprintf("%04x", valueUUID), value...)
}

// WithUnreadable makes reads of handle fail with an ATT error.
func (b *PeripheralBuilder) WithUnreadable(handle uint16, reason string) *PeripheralBuilder {
	if a, ok := b.attributes.Get(handle); ok {
		a.readErr = reason
	}
	return b
}

// WithPageSize sets how many rows one char-desc answer holds.
func (b *PeripheralBuilder) WithPageSize(n int) *PeripheralBuilder {
	b.pageSize = n
	return b
}

// WithConnectError makes "connect" fail with reason.
func (b *PeripheralBuilder) WithConnectError(reason string) *PeripheralBuilder {
	b.connectError = reason
	return b
}

// WithPromptRedisplay redraws the prompt after every char-desc row, as
// readline does when rows arrive asynchronously.
func (b *PeripheralBuilder) WithPromptRedisplay(enabled bool) *PeripheralBuilder {
	b.redisplayPrompt = enabled
	return b
}

// WithBlueZ5Prompt drops the [CON] tag from prompts.
func (b *PeripheralBuilder) WithBlueZ5Prompt(enabled bool) *PeripheralBuilder {
	b.bluez5Prompt = enabled
	return b
}

// WithEndMarker controls whether an empty char-desc range prints
// "Discover descriptors finished"; without it the request goes unanswered.
func (b *PeripheralBuilder) WithEndMarker(enabled bool) *PeripheralBuilder {
	b.endMarker = enabled
	return b
}

// WithSilentCommand makes commands starting with prefix go unanswered.
func (b *PeripheralBuilder) WithSilentCommand(prefix string) *PeripheralBuilder {
	b.silent = append(b.silent, prefix)
	return b
}

// Build returns a console positioned at the initial prompt.
func (b *PeripheralBuilder) Build() *PeripheralConsole {
	c := &PeripheralConsole{builder: b}
	c.ScriptedConsole = NewScriptedConsole(c.prompt(), c.handle)
	return c
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// PeripheralConsole implements gatttool.Console for a simulated peripheral.
// Commands are echoed the way readline echoes typed input.
type PeripheralConsole struct {
	*ScriptedConsole
	builder   *PeripheralBuilder
	connected bool
}

func (c *PeripheralConsole) prompt() string {
	tag := "[   ]"
	if c.connected {
		tag = "[CON]"
	}
	if c.builder.bluez5Prompt {
		tag = ""
	}
	return fmt.Sprintf("%s[%s][LE]> ", tag, c.builder.address)
}

func (c *PeripheralConsole) handle(line string) (string, bool) {
	var out strings.Builder
	// readline echoes the typed command
	out.WriteString(line + "\r\n")

	for _, prefix := range c.builder.silent {
		if strings.HasPrefix(line, prefix) {
			return out.String(), false
		}
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		out.WriteString(c.prompt())
		return out.String(), false
	}

	switch fields[0] {
	case "connect":
		fmt.Fprintf(&out, "Attempting to connect to %s\r\n", c.builder.address)
		if c.builder.connectError != "" {
			fmt.Fprintf(&out, "Error: connect error: %s\r\n", c.builder.connectError)
		} else {
			c.connected = true
			out.WriteString("Connection successful\r\n")
		}
	case "disconnect":
		c.connected = false
	case "exit":
		return out.String(), true
	case "char-desc":
		if !c.connected {
			out.WriteString("Command failed: disconnected\r\n")
			break
		}
		if !c.describe(&out, fields[1:]) {
			return out.String(), false
		}
	case "char-read-hnd":
		if !c.connected {
			out.WriteString("Command failed: disconnected\r\n")
			break
		}
		c.read(&out, fields[1:])
	default:
		fmt.Fprintf(&out, "%s: command not found\r\n", fields[0])
	}
	out.WriteString(c.prompt())
	return out.String(), false
}

// describe answers char-desc; it returns false when the request goes unanswered.
func (c *PeripheralConsole) describe(out *strings.Builder, args []string) bool {
	start := uint16(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16)
		if err != nil {
			out.WriteString("Invalid start handle: " + args[0] + "\r\n")
			return true
		}
		start = uint16(v)
	}

	rows := 0
	for pair := c.builder.attributes.Oldest(); pair != nil && rows < c.builder.pageSize; pair = pair.Next() {
		if pair.Key < start {
			continue
		}
		fmt.Fprintf(out, "handle: 0x%04x, uuid: %s\r\n", pair.Key, pair.Value.uuid)
		if c.builder.redisplayPrompt {
			out.WriteString(c.prompt())
		}
		rows++
	}
	if rows == 0 {
		if !c.builder.endMarker {
			return false
		}
		out.WriteString("Discover descriptors finished: No attribute found within the given range\r\n")
	}
	return true
}

func (c *PeripheralConsole) read(out *strings.Builder, args []string) {
	if len(args) == 0 {
		out.WriteString("Missing argument: handle\r\n")
		return
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16)
	if err != nil {
		out.WriteString("Invalid handle: " + args[0] + "\r\n")
		return
	}
	a, ok := c.builder.attributes.Get(uint16(v))
	switch {
	case !ok:
		out.WriteString("Characteristic value/descriptor read failed: Invalid handle\r\n")
	case a.readErr != "":
		out.WriteString("Characteristic value/descriptor read failed: " + a.readErr + "\r\n")
	default:
		out.WriteString("Characteristic value/descriptor: ")
		for _, o := range a.value {
			fmt.Fprintf(out, "%02x ", o)
		}
		out.WriteString("\r\n")
	}
}
