// Package rules implements the forwarding rule table and the resolution
// engine that maps original recipients to forwarding targets.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RuleSpec is the raw material for a Rule, as read from configuration.
// Exactly one of Address, Host, or Pattern must be set.
type RuleSpec struct {
	Address string
	Host    string
	Pattern string

	RejectLocalParts []string
	RejectPattern    string
	RejectSubject    []Matcher
	BypassReject     bool

	Targets []string
}

// Rule is a single compiled entry of the rule table. Rules are evaluated in
// declaration order and the first rule whose match criterion fires owns the
// recipient, whether or not it then rejects.
type Rule struct {
	address string
	host    string
	pattern *regexp.Regexp

	rejectLocalParts map[string]bool
	rejectPattern    *regexp.Regexp
	rejectSubject    []Matcher
	bypassReject     bool

	targets []string
}

// NewRule validates and compiles a RuleSpec. It fails when the spec has
// zero or more than one match criterion, no targets, or an uncompilable
// pattern.
func NewRule(spec RuleSpec) (*Rule, error) {
	criteria := 0
	for _, c := range []string{spec.Address, spec.Host, spec.Pattern} {
		if c != "" {
			criteria++
		}
	}
	if criteria == 0 {
		return nil, errors.New("rule has no match criterion (address, host, or pattern)")
	}
	if criteria > 1 {
		return nil, errors.New("rule has more than one match criterion")
	}
	if len(spec.Targets) == 0 {
		return nil, errors.New("rule has no targets")
	}

	r := &Rule{
		address:       spec.Address,
		host:          strings.ToLower(spec.Host),
		rejectSubject: spec.RejectSubject,
		bypassReject:  spec.BypassReject,
		targets:       spec.Targets,
	}

	if spec.Pattern != "" {
		// Full-string test: a partial match must not select a rule.
		re, err := regexp.Compile(`\A(?:` + spec.Pattern + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", spec.Pattern, err)
		}
		r.pattern = re
	}

	if spec.RejectPattern != "" {
		re, err := regexp.Compile(spec.RejectPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid reject pattern %q: %w", spec.RejectPattern, err)
		}
		r.rejectPattern = re
	}

	if len(spec.RejectLocalParts) > 0 {
		r.rejectLocalParts = make(map[string]bool, len(spec.RejectLocalParts))
		for _, lp := range spec.RejectLocalParts {
			r.rejectLocalParts[strings.ToLower(lp)] = true
		}
	}

	return r, nil
}

// Targets returns the rule's destination addresses.
func (r *Rule) Targets() []string {
	return r.targets
}

// matches reports whether the recipient satisfies the rule's match
// criterion. Exact address comparison is literal; host comparison is
// case-insensitive on the part after the last "@".
func (r *Rule) matches(recipient string) bool {
	switch {
	case r.address != "":
		return recipient == r.address
	case r.host != "":
		return hostOf(recipient) == r.host
	default:
		return r.pattern.MatchString(recipient)
	}
}

// rejects reports whether the rule's reject criteria fire for the
// recipient/subject pair. Global subject conditions are checked after the
// rule's own, and everything is skipped when the rule bypasses rejects.
func (r *Rule) rejects(recipient, subject string, global []Matcher) bool {
	if r.bypassReject {
		return false
	}
	if r.rejectLocalParts[strings.ToLower(localPartOf(recipient))] {
		return true
	}
	if r.rejectPattern != nil && r.rejectPattern.MatchString(recipient) {
		return true
	}
	for _, m := range r.rejectSubject {
		if m.Matches(subject) {
			return true
		}
	}
	for _, m := range global {
		if m.Matches(subject) {
			return true
		}
	}
	return false
}

// GlobalReject holds reject conditions applied across all rules (after any
// per-rule conditions, unless the matched rule bypasses rejects).
type GlobalReject struct {
	Subject []Matcher
	Body    []Matcher
}

// RuleSet is the complete, read-only rule configuration for one run.
type RuleSet struct {
	rules  []*Rule
	global GlobalReject
}

// NewRuleSet builds a RuleSet from rules in declaration order.
func NewRuleSet(rules []*Rule, global GlobalReject) *RuleSet {
	return &RuleSet{rules: rules, global: global}
}

// BodyReject returns the global body-line reject conditions.
func (rs *RuleSet) BodyReject() []Matcher {
	return rs.global.Body
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Resolution is the outcome of resolving one inbound message's recipients.
type Resolution struct {
	// Targets is the deduplicated forwarding list, in first-seen order.
	Targets []string
	// Primary is the first original recipient that resolved to a
	// non-empty, non-rejected target set; empty if none did.
	Primary string
}

// Resolve maps the original recipients to forwarding targets. Recipients
// are processed in the order given; for each, rules are scanned in
// declaration order and the first matching rule wins. A rejecting match
// still consumes the recipient: later rules are never consulted once a
// match criterion fires. An empty result is a normal outcome, not an
// error; the caller lets the message bounce upstream.
func (rs *RuleSet) Resolve(recipients []string, subject string) Resolution {
	var res Resolution
	seen := make(map[string]bool)

	for _, rcpt := range recipients {
		rule := rs.firstMatch(rcpt)
		if rule == nil {
			slog.Debug("recipient matched no rule", "recipient", rcpt)
			continue
		}
		if rule.rejects(rcpt, subject, rs.global.Subject) {
			slog.Debug("recipient rejected by matched rule", "recipient", rcpt)
			continue
		}
		if res.Primary == "" {
			res.Primary = rcpt
		}
		for _, t := range rule.targets {
			if !seen[t] {
				seen[t] = true
				res.Targets = append(res.Targets, t)
			}
		}
	}

	return res
}

func (rs *RuleSet) firstMatch(recipient string) *Rule {
	for _, r := range rs.rules {
		if r.matches(recipient) {
			return r
		}
	}
	return nil
}

func hostOf(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(addr[i+1:])
}

func localPartOf(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return addr
	}
	return addr[:i]
}
