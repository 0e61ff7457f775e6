// Package message implements wire-level RFC 5322 message handling for
// forwarding: splitting raw bytes into headers and body, rewriting the
// header block for an authenticated outbound transport, vetoing messages
// on body content, and reassembling the result.
//
// The body is treated as an opaque sequence of text lines. Nothing here
// decodes MIME structure; preserving the original bytes (folding included)
// is the point.
package message

import (
	"fmt"
	"strings"
)

// Header is one logical header: parsed name and value plus the original
// wire lines, folded continuations included.
type Header struct {
	Name  string
	Value string
	Raw   []string
}

// ParsedMessage is a raw message split into its header block and body.
type ParsedMessage struct {
	Headers []Header
	// Body holds everything after the separator line, verbatim,
	// including empty lines and a trailing empty element when the
	// message ends with a line terminator.
	Body []string
	// SeparatorFound records whether the blank header/body separator
	// was present.
	SeparatorFound bool
	// CRLF records the input's line terminator convention so that
	// reassembly can reproduce it.
	CRLF bool
}

// Terminator returns the line terminator the input used.
func (m *ParsedMessage) Terminator() string {
	if m.CRLF {
		return "\r\n"
	}
	return "\n"
}

// MalformedError reports a header parse failure.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed message: " + e.Reason
}

// Parse splits raw message bytes into logical headers and body lines.
// It fails when a continuation line appears before any header, when a
// header line is not of the form "name: value", or when no header was
// accumulated at all.
func Parse(raw []byte) (*ParsedMessage, error) {
	s := string(raw)

	crlf := true
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		crlf = i > 0 && s[i-1] == '\r'
	}
	term := "\n"
	if crlf {
		term = "\r\n"
	}
	lines := strings.Split(s, term)

	msg := &ParsedMessage{CRLF: crlf}
	var buf []string
	inHeaders := true

	for i, line := range lines {
		if !inHeaders {
			msg.Body = append(msg.Body, line)
			continue
		}

		if line == "" {
			if i == len(lines)-1 {
				// Trailing terminator artifact, not a separator.
				break
			}
			if len(buf) > 0 {
				h, err := parseHeader(buf)
				if err != nil {
					return nil, err
				}
				msg.Headers = append(msg.Headers, h)
				buf = nil
			}
			if len(msg.Headers) == 0 {
				return nil, &MalformedError{Reason: "no headers before header/body separator"}
			}
			msg.SeparatorFound = true
			inHeaders = false
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(buf) == 0 {
				return nil, &MalformedError{Reason: "continuation line before any header"}
			}
			buf = append(buf, line)
			continue
		}

		if len(buf) > 0 {
			h, err := parseHeader(buf)
			if err != nil {
				return nil, err
			}
			msg.Headers = append(msg.Headers, h)
		}
		buf = []string{line}
	}

	if inHeaders {
		if len(buf) > 0 {
			h, err := parseHeader(buf)
			if err != nil {
				return nil, err
			}
			msg.Headers = append(msg.Headers, h)
		}
		if len(msg.Headers) == 0 {
			return nil, &MalformedError{Reason: "no header/body separator and no headers"}
		}
	}

	return msg, nil
}

// parseHeader turns buffered wire lines into a Header. The first line must
// be "name: value" with a whitespace-free name; continuation lines are
// joined into the value with single spaces.
func parseHeader(raw []string) (Header, error) {
	first := raw[0]
	colon := strings.IndexByte(first, ':')
	if colon <= 0 {
		return Header{}, &MalformedError{Reason: fmt.Sprintf("header line %q has no name", first)}
	}
	name := first[:colon]
	if strings.ContainsAny(name, " \t") {
		return Header{}, &MalformedError{Reason: fmt.Sprintf("header name %q contains whitespace", name)}
	}

	value := strings.TrimLeft(first[colon+1:], " \t")
	for _, cont := range raw[1:] {
		value += " " + strings.TrimLeft(cont, " \t")
	}

	return Header{Name: name, Value: value, Raw: raw}, nil
}
