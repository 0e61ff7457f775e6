package message

import "strings"

// Assemble joins a rewritten header block and the untouched body back into
// wire format, using the input's line terminator. The header block is
// terminated by exactly one blank line before the body.
func Assemble(headerLines, body []string, crlf bool) []byte {
	term := "\n"
	if crlf {
		term = "\r\n"
	}

	var b strings.Builder
	for _, l := range headerLines {
		b.WriteString(l)
		b.WriteString(term)
	}
	b.WriteString(term)
	b.WriteString(strings.Join(body, term))
	return []byte(b.String())
}
