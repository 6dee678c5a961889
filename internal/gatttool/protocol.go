package gatttool

import (
	"fmt"
	"regexp"
	"strings"
)

// Interactive commands understood by gatttool.
const (
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdExit       = "exit"
	cmdCharDesc   = "char-desc"
	cmdReadHandle = "char-read-hnd"
)

// Response markers.
var (
	// PromptMarker matches the interactive prompt, e.g. "[AA:BB:CC:DD:EE:FF][LE]>".
	PromptMarker = regexp.MustCompile(`\[LE\]>`)

	// ConnectedMarker matches the connection-status tag shown in the prompt once connected.
	ConnectedMarker = regexp.MustCompile(`\[CON\]`)

	// ConnectSuccessMarker matches gatttool's confirmation of a new connection.
	ConnectSuccessMarker = regexp.MustCompile(`Connection successful`)

	// ConnectErrorMarker matches a refused or failed connect, e.g.
	// "Error: connect error: Connection refused (111)"; group 1 is the reason.
	ConnectErrorMarker = regexp.MustCompile(`(?:Error: (?:connect error: )?|connect error: )([^\r\n]*)\r?\n`)

	// AttributeRowMarker matches one complete char-desc row. The row starts the
	// output, a line, or follows a redisplayed prompt.
	AttributeRowMarker = regexp.MustCompile(`(?:^|[\r\n>])[ \t]*(handle[^\r\n]*)\r?\n`)

	// EndOfTableMarker matches gatttool's report that no attribute exists past the
	// requested start handle; group 1 is the reason.
	EndOfTableMarker = regexp.MustCompile(`Discover descriptors finished: ([^\r\n]*)\r?\n`)

	// ValueMarker matches a char-read-hnd response; group 1 holds the octets.
	ValueMarker = regexp.MustCompile(`descriptor:([^\r\n]*)\r?\n`)

	// ReadFailedMarker matches a char-read-hnd error; group 1 is the ATT error text.
	ReadFailedMarker = regexp.MustCompile(`read failed: ([^\r\n]*)\r?\n`)

	// DisconnectedMarker matches gatttool refusing a command while disconnected.
	DisconnectedMarker = regexp.MustCompile(`Command failed: disconnected`)
)

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	promptPrefix = regexp.MustCompile(`(?:\[(?:CON| {3})\])?\[[0-9A-Fa-f:]*\]\[LE\]>\s*`)
	// attributeLine is the char-desc row grammar: "handle: 0x0001, uuid: 2800".
	attributeLine = regexp.MustCompile(`^handle:\s*(0x[0-9A-Fa-f]{1,4}),\s*uuid:\s*([0-9A-Fa-f-]+)$`)
	octetToken    = regexp.MustCompile(`^[0-9A-Fa-f]{2}$`)
)

// sigBaseSuffix is the tail of a 16-bit UUID expanded to the Bluetooth base UUID.
const sigBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// CharDesc builds the attribute-description command. An empty cursor requests
// the table from the beginning; otherwise the walk resumes at the cursor handle.
func CharDesc(cursor string) string {
	if cursor == "" {
		return cmdCharDesc
	}
	return cmdCharDesc + " " + cursor
}

// CharReadHandle builds the read-by-handle command.
func CharReadHandle(handle string) string {
	return fmt.Sprintf("%s %s", cmdReadHandle, handle)
}

// StripANSI removes terminal escape sequences emitted by readline.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// CleanLine removes escape sequences, carriage returns and prompt residue
// left by readline redisplays, and trims surrounding whitespace.
func CleanLine(line string) string {
	line = StripANSI(line)
	line = strings.ReplaceAll(line, "\r", "")
	line = promptPrefix.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// SplitLines splits captured text into complete lines. The text after the
// last newline is an unfinished line (usually a prompt) and is dropped.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	return parts[:len(parts)-1]
}

// IsAttributeLine reports whether a cleaned line claims to be a char-desc row.
func IsAttributeLine(line string) bool {
	return strings.HasPrefix(line, "handle")
}

// ParseAttributeLine extracts the (handle, uuid) pair from a char-desc row.
// Both are lowercased; 128-bit UUIDs built on the Bluetooth base are shortened
// to their 16-bit form.
func ParseAttributeLine(line string) (string, string, error) {
	cleaned := CleanLine(line)
	if i := strings.Index(cleaned, "handle"); i > 0 {
		cleaned = cleaned[i:]
	}
	m := attributeLine.FindStringSubmatch(cleaned)
	if m == nil {
		return "", "", &ParseError{Line: cleaned, Reason: `expected "handle: 0x<hex>, uuid: <hex>"`}
	}
	return strings.ToLower(m[1]), NormalizeUUID(m[2]), nil
}

// ParseOctets splits the payload of a "descriptor:" line into lowercase
// two-hex-digit tokens. Empty payload yields an empty, non-nil slice.
func ParseOctets(payload string) ([]string, error) {
	fields := strings.Fields(CleanLine(payload))
	octets := make([]string, 0, len(fields))
	for _, f := range fields {
		if !octetToken.MatchString(f) {
			return nil, &ParseError{Line: payload, Reason: fmt.Sprintf("invalid octet %q", f)}
		}
		octets = append(octets, strings.ToLower(f))
	}
	return octets, nil
}

// NormalizeUUID lowercases a UUID, strips a 0x prefix and shortens
// Bluetooth base UUIDs (0000xxxx-0000-1000-8000-00805f9b34fb) to xxxx.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 36 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}
