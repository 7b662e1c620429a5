package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseStatus tags how much of a raw oracle response survived parsing.
type ParseStatus int

const (
	// ParseOK means the response parsed as-is.
	ParseOK ParseStatus = iota
	// ParsePartial means recovery dropped or repaired some entries.
	ParsePartial
	// ParseFailed means nothing usable could be recovered.
	ParseFailed
)

// ParseOutcome is the result of the lenient parsing pipeline. Recoverable
// entries are kept; malformed ones are dropped and reported as warnings.
type ParseOutcome struct {
	Status   ParseStatus
	Fragment Fragment
	Warnings []string
}

// Parse turns raw model output into a mapping fragment. The pipeline is a
// strict pass, then a sanitize-and-retry pass (code fences, comments,
// trailing commas), then a last-resort scrape of "name": "path" pairs.
func Parse(raw string) ParseOutcome {
	candidate := extractJSON(raw)

	if frag, warnings, ok := decodeFragment(candidate); ok {
		status := ParseOK
		if len(warnings) > 0 {
			status = ParsePartial
		}
		return ParseOutcome{Status: status, Fragment: frag, Warnings: warnings}
	}

	sanitized := sanitizeJSON(candidate)
	if sanitized != candidate {
		if frag, warnings, ok := decodeFragment(sanitized); ok {
			warnings = append(warnings, "response required sanitization before parsing")
			return ParseOutcome{Status: ParsePartial, Fragment: frag, Warnings: warnings}
		}
	}

	if frag := scrapePairs(candidate); frag.Size() > 0 {
		return ParseOutcome{
			Status:   ParsePartial,
			Fragment: frag,
			Warnings: []string{"response was not valid JSON, recovered pairs by scraping"},
		}
	}

	return ParseOutcome{Status: ParseFailed, Warnings: []string{"no mapping entries recoverable from response"}}
}

// extractJSON isolates the JSON payload from a response that may wrap it in
// markdown code fences or prose.
func extractJSON(s string) string {
	if idx := strings.Index(s, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		start := idx + 3
		// Skip optional language identifier
		if nlIdx := strings.Index(s[start:], "\n"); nlIdx != -1 {
			start += nlIdx + 1
		}
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}

	// First balanced top-level object.
	if start := strings.Index(s, "{"); start != -1 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}

	return strings.TrimSpace(s)
}

// decodeFragment unmarshals section by section so a single malformed section
// costs only its own entries. Non-string values are dropped with a warning.
func decodeFragment(s string) (Fragment, []string, bool) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &sections); err != nil {
		return nil, nil, false
	}

	frag := make(Fragment)
	var warnings []string
	for name, raw := range sections {
		var entries map[string]string
		if err := json.Unmarshal(raw, &entries); err != nil {
			// Sections with mixed value types are partially salvageable.
			var loose map[string]any
			if err := json.Unmarshal(raw, &loose); err != nil {
				warnings = append(warnings, fmt.Sprintf("dropped unparseable section %q", name))
				continue
			}
			entries = make(map[string]string)
			for k, v := range loose {
				if path, ok := v.(string); ok {
					entries[k] = path
				} else {
					warnings = append(warnings, fmt.Sprintf("dropped non-string entry %q in section %q", k, name))
				}
			}
		}
		if len(entries) > 0 {
			frag[name] = entries
		}
	}
	return frag, warnings, true
}

var (
	lineCommentRe  = regexp.MustCompile(`(?m)^\s*//.*$`)
	tailCommentRe  = regexp.MustCompile(`(["}\]0-9el])\s*//[^"\n]*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// sanitizeJSON strips the error patterns reasoning models actually produce:
// inline comments and trailing commas.
func sanitizeJSON(s string) string {
	s = blockCommentRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	var cleaned []string
	for _, line := range strings.Split(s, "\n") {
		cleaned = append(cleaned, tailCommentRe.ReplaceAllString(line, "$1"))
	}
	s = strings.Join(cleaned, "\n")
	s = trailingComma.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

var (
	sectionOpenRe = regexp.MustCompile(`"([^"]+)"\s*:\s*\{`)
	pairRe        = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]+)"`)
)

// scrapePairs is the last-resort recovery: walk the text line by line,
// tracking the current section heading and collecting string pairs.
func scrapePairs(s string) Fragment {
	frag := make(Fragment)
	section := "unsectioned"

	for _, line := range strings.Split(s, "\n") {
		if m := sectionOpenRe.FindStringSubmatch(line); m != nil && !pairRe.MatchString(strings.Replace(line, m[0], "", 1)) {
			section = m[1]
			// The section heading itself also matches pairRe's key pattern,
			// so strip it before pair collection below.
			line = strings.Replace(line, m[0], "", 1)
		}
		for _, m := range pairRe.FindAllStringSubmatch(line, -1) {
			if frag[section] == nil {
				frag[section] = make(map[string]string)
			}
			if _, exists := frag[section][m[1]]; !exists {
				frag[section][m[1]] = m[2]
			}
		}
	}

	for name, entries := range frag {
		if len(entries) == 0 {
			delete(frag, name)
		}
	}
	return frag
}
