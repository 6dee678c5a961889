package gatt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/gattwalk/internal/gatttool"
)

// Empty is rendered for values the peripheral returned with zero length.
const Empty = "<empty>"

// Characteristic is a decoded characteristic declaration (UUID 0x2803).
// Handles and UUIDs are lowercase hex without a 0x prefix.
type Characteristic struct {
	ValueHandle string `json:"value_handle" yaml:"value_handle"`
	ValueUUID   string `json:"value_uuid" yaml:"value_uuid"`
	Properties  string `json:"properties" yaml:"properties"`
}

// IsZero reports whether the declaration was absent or too short to decode.
func (c Characteristic) IsZero() bool {
	return c.ValueHandle == ""
}

// String renders the declaration as "handle: 0x<h> uuid: 0x<u> prop: 0x<p>".
func (c Characteristic) String() string {
	if c.IsZero() {
		return Empty
	}
	return fmt.Sprintf("handle: 0x%s uuid: 0x%s prop: 0x%s", c.ValueHandle, c.ValueUUID, c.Properties)
}

// ConnectionParameters is the Peripheral Preferred Connection Parameters value (0x2A04).
type ConnectionParameters struct {
	MinInterval float64 // ms
	MaxInterval float64 // ms
	Latency     float64 // scaled like the intervals
	Timeout     float64 // ms
}

func (c ConnectionParameters) String() string {
	return fmt.Sprintf("min = %sms; max = %sms; lat = %sms; timeout = %sms",
		formatFloat(c.MinInterval), formatFloat(c.MaxInterval), formatFloat(c.Latency), formatFloat(c.Timeout))
}

// Appearance is the Appearance value (0x2A01) split into its two bitfields.
type Appearance struct {
	Category    uint16 // value & 0x3ff
	SubCategory uint16 // value >> 10
}

func (a Appearance) String() string {
	return fmt.Sprintf("category: %d sub-category: %d", a.Category, a.SubCategory)
}

// octetBytes converts hex tokens to bytes.
func octetBytes(octets []string) ([]byte, error) {
	b := make([]byte, len(octets))
	for i, o := range octets {
		v, err := strconv.ParseUint(o, 16, 8)
		if err != nil {
			return nil, &gatttool.ParseError{Line: strings.Join(octets, " "), Reason: fmt.Sprintf("invalid octet %q", o)}
		}
		b[i] = byte(v)
	}
	return b, nil
}

// littleEndianHex renders little-endian octets in display order.
func littleEndianHex(b []byte) string {
	return hex.EncodeToString(ble.Reverse(b))
}

// formatFloat prints a float with at least one decimal, e.g. 15.0 or 7.5.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// DecodeString interprets each octet as a character code. Control octets
// (zero, below 0x20 and 0x7f) are rendered as a backslash followed by their
// hex text so they cannot break table layout or reach the terminal. The result
// is quoted.
func DecodeString(octets []string) (string, error) {
	if len(octets) == 0 {
		return Empty, nil
	}
	b, err := octetBytes(octets)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteByte('\'')
	for i, c := range b {
		if c < 0x20 || c == 0x7f {
			sb.WriteString(`\` + strings.ToLower(octets[i]))
			continue
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('\'')
	return sb.String(), nil
}

// DecodeHex joins the octets with single spaces, quoted.
func DecodeHex(octets []string) string {
	if len(octets) == 0 {
		return Empty
	}
	return "'" + strings.Join(octets, " ") + "'"
}

// DecodeUUID reverses little-endian octets into display order with a 0x prefix.
func DecodeUUID(octets []string) (string, error) {
	if len(octets) == 0 {
		return Empty, nil
	}
	b, err := octetBytes(octets)
	if err != nil {
		return "", err
	}
	return "0x" + littleEndianHex(b), nil
}

// DecodeCharacteristic parses a declaration: 1 octet properties, 2 octets value
// handle and the value UUID, both little-endian. The UUID is 2 octets for the
// common 16-bit case; 4 and 16 octet UUIDs are accepted by length. Fewer than
// 5 octets, or a UUID of any other length, yields the zero Characteristic.
func DecodeCharacteristic(octets []string) (Characteristic, error) {
	if len(octets) < 5 {
		return Characteristic{}, nil
	}
	b, err := octetBytes(octets)
	if err != nil {
		return Characteristic{}, err
	}
	uuid := b[3:]
	switch len(uuid) {
	case 2, 4, 16:
	default:
		return Characteristic{}, nil
	}
	return Characteristic{
		ValueHandle: littleEndianHex(b[1:3]),
		ValueUUID:   littleEndianHex(uuid),
		Properties:  octets[0],
	}, nil
}

// ParseConnectionParameters decodes four little-endian 16-bit fields.
// Intervals and latency are scaled by 1.25, the supervision timeout by 10.
func ParseConnectionParameters(octets []string) (ConnectionParameters, error) {
	if len(octets) < 8 {
		return ConnectionParameters{}, &gatttool.ParseError{
			Line:   strings.Join(octets, " "),
			Reason: fmt.Sprintf("connection parameters need 8 octets, got %d", len(octets)),
		}
	}
	b, err := octetBytes(octets[:8])
	if err != nil {
		return ConnectionParameters{}, err
	}
	return ConnectionParameters{
		MinInterval: float64(binary.LittleEndian.Uint16(b[0:2])) * 1.25,
		MaxInterval: float64(binary.LittleEndian.Uint16(b[2:4])) * 1.25,
		Latency:     float64(binary.LittleEndian.Uint16(b[4:6])) * 1.25,
		Timeout:     float64(binary.LittleEndian.Uint16(b[6:8])) * 10,
	}, nil
}

// DecodeConnectionParameters renders a 0x2A04 value; short values fall back to hex.
func DecodeConnectionParameters(octets []string) (string, error) {
	if len(octets) == 0 {
		return Empty, nil
	}
	if len(octets) < 8 {
		return DecodeHex(octets), nil
	}
	c, err := ParseConnectionParameters(octets)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// ParseAppearance decodes the first two octets as a little-endian 16-bit value.
func ParseAppearance(octets []string) (Appearance, error) {
	if len(octets) < 2 {
		return Appearance{}, &gatttool.ParseError{
			Line:   strings.Join(octets, " "),
			Reason: fmt.Sprintf("appearance needs 2 octets, got %d", len(octets)),
		}
	}
	b, err := octetBytes(octets[:2])
	if err != nil {
		return Appearance{}, err
	}
	v := binary.LittleEndian.Uint16(b)
	return Appearance{Category: v & 0x3ff, SubCategory: v >> 10}, nil
}

// DecodeAppearance renders a 0x2A01 value; a single octet falls back to hex.
func DecodeAppearance(octets []string) (string, error) {
	if len(octets) == 0 {
		return Empty, nil
	}
	if len(octets) < 2 {
		return DecodeHex(octets), nil
	}
	a, err := ParseAppearance(octets)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}
