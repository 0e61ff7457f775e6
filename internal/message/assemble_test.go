package message

import (
	"strings"
	"testing"
)

func TestAssemble_RoundTripExceptFrom(t *testing.T) {
	t.Parallel()

	// No duplicates, no excluded headers, non-empty Reply-To: everything
	// but the From substitution must survive byte-identical.
	raw := strings.Join([]string{
		"From: orig@elsewhere.org",
		"Reply-To: keep@elsewhere.org",
		"To: t@yourdomain.com",
		"Subject: folded",
		" across lines",
		"",
		"body line one",
		"",
		"body line two",
		"",
	}, "\r\n")

	msg := mustParse(t, raw)
	lines := Rewrite(msg, primary)
	out := string(Assemble(lines, msg.Body, msg.CRLF))

	want := strings.Replace(raw,
		"From: orig@elsewhere.org",
		`From: "orig@elsewhere.org" <`+primary+`>`, 1)
	if out != want {
		t.Errorf("round trip mismatch:\ngot  %q\nwant %q", out, want)
	}
}

func TestAssemble_SingleBlankLineBeforeBody(t *testing.T) {
	t.Parallel()

	out := string(Assemble([]string{"From: a@x.com", "To: b@y.com"}, []string{"body", ""}, true))
	want := "From: a@x.com\r\nTo: b@y.com\r\n\r\nbody\r\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestAssemble_LFConvention(t *testing.T) {
	t.Parallel()

	out := string(Assemble([]string{"From: a@x.com"}, []string{"body", ""}, false))
	want := "From: a@x.com\n\nbody\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
