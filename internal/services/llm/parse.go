package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	rulesBlock     = regexp.MustCompile("(?is)#{2,3}\\s*CLIENT_RULES\\s*```(?:javascript|js)?[ \\t]*\\n?(.*?)```")
	guidelinesHead = regexp.MustCompile(`(?i)#{2,3}\s*GUIDELINES[ \t]*`)
	nextSection    = regexp.MustCompile(`(?i)\n#{2,3}\s*(?:SUBTYPE:|CATEGORY:|CLIENT_RULES)`)
	markdownFence  = regexp.MustCompile("(?s)^```(?:markdown|md)?[ \\t]*\\n(.*?)\\n?```$")
	jsonFence      = regexp.MustCompile("(?s)^```(?:json)?[ \\t]*\\n?(.*?)\\n?```$")
)

// ParseArtifacts splits a model reply into the client rules script (the
// fenced block under a CLIENT_RULES heading) and the guidelines document
// (everything under a GUIDELINES heading up to the next category or rules
// heading). Missing sections come back empty.
func ParseArtifacts(reply string) (rules, guidelines string) {
	if match := rulesBlock.FindStringSubmatch(reply); match != nil {
		rules = strings.TrimSpace(match[1])
	}
	loc := guidelinesHead.FindStringIndex(reply)
	if loc == nil {
		return rules, ""
	}
	rest := reply[loc[1]:]
	if end := nextSection.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	rest = strings.TrimSpace(rest)
	if match := markdownFence.FindStringSubmatch(rest); match != nil {
		rest = strings.TrimSpace(match[1])
	}
	return rules, rest
}

// DecodeJSON decodes a JSON object from a model reply, tolerating a code
// fence or prose around it.
func DecodeJSON(reply string, target any) error {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(reply), target)
	if err == nil {
		return nil
	}
	candidate := reply
	if match := jsonFence.FindStringSubmatch(candidate); match != nil {
		candidate = strings.TrimSpace(match[1])
	}
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	if candidate == reply {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(reply))
	}
	if err := json.Unmarshal([]byte(candidate), target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(candidate))
	}
	return nil
}

// snippet flattens whitespace and truncates s for error messages.
func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
