package ircd

import "strings"

// message is a parsed protocol line: [":" prefix SP] command (SP param)*
// [SP ":" trailing], per spec.md §4.3. The prefix is parsed only so it can
// be discarded -- this server does not federate and never trusts a
// client-supplied prefix.
//
// Grounded on the teacher's vendored codec (horgh/irc decode.go), adapted
// to operate on a line the framer has already stripped of its trailing
// CRLF, to collapse runs of spaces between tokens, and to drop rather than
// retain the prefix.
type message struct {
	Command string
	Params  []string
}

// parseMessage parses one already-framed line (no CRLF). A malformed frame
// -- a prefix with no following space -- is dropped silently, per spec.md
// §4.3 "Malformed frames": ok is false and the frame should simply be
// ignored, never responded to.
func parseMessage(line string) (m message, ok bool) {
	pos := 0

	if len(line) > 0 && line[0] == ':' {
		idx := strings.IndexByte(line, ' ')
		if idx == -1 {
			// Prefix with no following space: drop the whole frame.
			return message{}, false
		}
		pos = idx + 1
	}

	pos = skipSpaces(line, pos)
	if pos >= len(line) {
		return message{}, false
	}

	cmdStart := pos
	for pos < len(line) && line[pos] != ' ' {
		pos++
	}
	m.Command = strings.ToUpper(line[cmdStart:pos])

	for {
		pos = skipSpaces(line, pos)
		if pos >= len(line) {
			break
		}

		if line[pos] == ':' {
			m.Params = append(m.Params, line[pos+1:])
			break
		}

		paramStart := pos
		for pos < len(line) && line[pos] != ' ' {
			pos++
		}
		m.Params = append(m.Params, line[paramStart:pos])
	}

	return m, true
}

func skipSpaces(line string, pos int) int {
	for pos < len(line) && line[pos] == ' ' {
		pos++
	}
	return pos
}

// formatLine builds one outbound protocol line (without the trailing CRLF;
// the output queue appends that, see conn.go). prefix may be empty. The
// last param is treated as the trailing parameter (quoted with a leading
// ':') whenever it contains a space, is empty, or starts with ':' --
// matching the teacher's encode.go rules.
func formatLine(prefix, command string, params ...string) string {
	var b strings.Builder

	if prefix != "" {
		b.WriteByte(':')
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	b.WriteString(command)

	for i, p := range params {
		b.WriteByte(' ')
		last := i == len(params)-1
		if last && (p == "" || strings.IndexByte(p, ' ') != -1 || (p != "" && p[0] == ':')) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}
