// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Verdict is a validated model answer.
type Verdict struct {
	Rating     types.Rating
	Confidence float64
	Reasoning  string
}

var (
	thinkBlockRe = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkTagRe   = regexp.MustCompile(`(?i)</?think>`)
	fencedRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// Accepted field names, canonical first.
var (
	ratingKeys     = []string{"rating", "relevance_rating"}
	confidenceKeys = []string{"confidence", "confidence_score"}
	reasoningKeys  = []string{"reasoning"}
)

// maxSnippet bounds how much of a bad response is quoted in errors.
const maxSnippet = 300

// ParseResponse extracts and validates a verdict from raw model output.
// Reasoning blocks, code fences, and surrounding prose are tolerated; the
// JSON object itself is decoded strictly. Any failure is a malformed-response
// error.
func ParseResponse(text string) (Verdict, error) {
	candidates := jsonCandidates(text)
	if len(candidates) == 0 {
		return Verdict{}, Malformed(fmt.Errorf("no JSON object in response: %q", snippet(text)))
	}

	var firstErr error
	for _, c := range candidates {
		v, err := decodeVerdict(c)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Verdict{}, Malformed(fmt.Errorf("%v (response: %q)", firstErr, snippet(text)))
}

// jsonCandidates returns JSON object strings in priority order: fenced
// blocks, objects mentioning a rating field, other objects, then the whole
// text. Candidates from the text with reasoning blocks removed come before
// candidates from the raw text.
func jsonCandidates(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	cleaned := stripThinking(text)
	for _, src := range []string{cleaned, text} {
		for _, m := range fencedRe.FindAllStringSubmatch(src, -1) {
			add(m[1])
		}
		objects := balancedObjects(src)
		for _, o := range objects {
			if mentionsRating(o) {
				add(o)
			}
		}
		for _, o := range objects {
			add(o)
		}
		if t := strings.TrimSpace(src); strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
			add(t)
		}
	}
	return out
}

func stripThinking(text string) string {
	cleaned := thinkBlockRe.ReplaceAllString(text, "")
	cleaned = thinkTagRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func mentionsRating(s string) bool {
	lower := strings.ToLower(s)
	for _, k := range ratingKeys {
		if strings.Contains(lower, `"`+k+`"`) {
			return true
		}
	}
	return false
}

// balancedObjects returns every top-level {...} span in s, tracking string
// literals so braces inside strings do not confuse the scan.
func balancedObjects(s string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, s[start:i+1])
				start = -1
			}
		}
	}
	return out
}

// decodeVerdict decodes one candidate object and validates every field.
func decodeVerdict(candidate string) (Verdict, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return Verdict{}, fmt.Errorf("invalid JSON: %w", err)
	}

	rawRating, ok := lookup(fields, ratingKeys)
	if !ok {
		return Verdict{}, fmt.Errorf("missing field %q", ratingKeys[0])
	}
	var ratingStr string
	if err := json.Unmarshal(rawRating, &ratingStr); err != nil {
		return Verdict{}, fmt.Errorf("rating is not a string: %s", rawRating)
	}
	rating, ok := NormalizeRating(ratingStr)
	if !ok {
		return Verdict{}, fmt.Errorf("rating %q is not one of High, Medium, Low", ratingStr)
	}

	rawConfidence, ok := lookup(fields, confidenceKeys)
	if !ok {
		return Verdict{}, fmt.Errorf("missing field %q", confidenceKeys[0])
	}
	confidence, err := decodeNumber(rawConfidence)
	if err != nil {
		return Verdict{}, err
	}

	rawReasoning, ok := lookup(fields, reasoningKeys)
	if !ok {
		return Verdict{}, fmt.Errorf("missing field %q", reasoningKeys[0])
	}
	var reasoning string
	if err := json.Unmarshal(rawReasoning, &reasoning); err != nil {
		return Verdict{}, fmt.Errorf("reasoning is not a string: %s", rawReasoning)
	}
	reasoning = strings.TrimSpace(reasoning)
	if reasoning == "" {
		return Verdict{}, fmt.Errorf("reasoning is empty")
	}

	return Verdict{
		Rating:     rating,
		Confidence: ClampConfidence(confidence),
		Reasoning:  reasoning,
	}, nil
}

func lookup(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// decodeNumber accepts only a JSON number. Quoted numbers are rejected.
func decodeNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("confidence is not a number: %s", raw)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("confidence is not a number: %s", raw)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("confidence is not a number: %s", raw)
	}
	return f, nil
}

// NormalizeRating maps a rating to its canonical casing, ignoring case and
// surrounding whitespace.
func NormalizeRating(s string) (types.Rating, bool) {
	s = strings.TrimSpace(s)
	for _, r := range types.Ratings {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}

// ClampConfidence limits c to [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func snippet(s string) string {
	return truncate(strings.TrimSpace(s), maxSnippet)
}

// truncate shortens s to at most n bytes plus "..." without splitting a
// UTF-8 sequence. Invalid bytes are replaced with U+FFFD first so the result
// survives a JSON round trip unchanged.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
