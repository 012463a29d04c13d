// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pdiddy/survey-engine/pkg/types"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantRating types.Rating
		wantConf   float64
		wantErr    bool
	}{
		{
			name:       "plain object",
			text:       `{"rating": "Medium", "confidence": 0.6, "reasoning": "Related."}`,
			wantRating: types.RatingMedium,
			wantConf:   0.6,
		},
		{
			name:       "lowercase rating",
			text:       `{"rating": "low", "confidence": 0.2, "reasoning": "Unrelated."}`,
			wantRating: types.RatingLow,
			wantConf:   0.2,
		},
		{
			name:       "code fence",
			text:       "Here is my answer:\n```json\n{\"rating\": \"High\", \"confidence\": 0.8, \"reasoning\": \"Core.\"}\n```",
			wantRating: types.RatingHigh,
			wantConf:   0.8,
		},
		{
			name:       "think block with braces",
			text:       "<think>maybe {\"rating\": \"Low\"} no</think>\n{\"rating\": \"High\", \"confidence\": 0.7, \"reasoning\": \"Core.\"}",
			wantRating: types.RatingHigh,
			wantConf:   0.7,
		},
		{
			name:       "surrounding prose",
			text:       `Sure. {"rating": "Medium", "confidence": 0.5, "reasoning": "Uses {braces} in text."} Hope that helps.`,
			wantRating: types.RatingMedium,
			wantConf:   0.5,
		},
		{
			name:       "field aliases",
			text:       `{"relevance_rating": "High", "confidence_score": 0.95, "reasoning": "Core."}`,
			wantRating: types.RatingHigh,
			wantConf:   0.95,
		},
		{
			name:       "integer confidence clamps",
			text:       `{"rating": "High", "confidence": 3, "reasoning": "Core."}`,
			wantRating: types.RatingHigh,
			wantConf:   1.0,
		},
		{name: "no json", text: "High relevance, very confident.", wantErr: true},
		{name: "unknown rating", text: `{"rating": "Very High", "confidence": 0.9, "reasoning": "x"}`, wantErr: true},
		{name: "quoted confidence", text: `{"rating": "High", "confidence": "0.9", "reasoning": "x"}`, wantErr: true},
		{name: "missing confidence", text: `{"rating": "High", "reasoning": "x"}`, wantErr: true},
		{name: "empty reasoning", text: `{"rating": "High", "confidence": 0.9, "reasoning": "  "}`, wantErr: true},
		{name: "null rating", text: `{"rating": null, "confidence": 0.9, "reasoning": "x"}`, wantErr: true},
		{name: "truncated", text: `{"rating": "High", "confidence": 0.9, "reas`, wantErr: true},
		{name: "empty", text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseResponse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", v)
				}
				if KindOf(err) != KindMalformed {
					t.Errorf("kind = %v, want malformed", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Rating != tt.wantRating {
				t.Errorf("rating = %q, want %q", v.Rating, tt.wantRating)
			}
			if v.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", v.Confidence, tt.wantConf)
			}
			if v.Reasoning == "" {
				t.Error("reasoning is empty")
			}
		})
	}
}

func TestNormalizeRating(t *testing.T) {
	for in, want := range map[string]types.Rating{
		"HIGH":     types.RatingHigh,
		" medium ": types.RatingMedium,
		"Low":      types.RatingLow,
	} {
		got, ok := NormalizeRating(in)
		if !ok || got != want {
			t.Errorf("NormalizeRating(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := NormalizeRating("none"); ok {
		t.Error("NormalizeRating(none) should fail")
	}
}

func TestClampConfidence(t *testing.T) {
	for in, want := range map[float64]float64{-0.3: 0, 0: 0, 0.42: 0.42, 1: 1, 1.7: 1} {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 3, "abc..."},
		{"cut inside rune backs off", "abé", 3, "ab..."},
		{"cut after rune", "abéz", 4, "abé..."},
		{"three-byte runes", "日本語", 4, "日..."},
		{"invalid bytes replaced", "a\xffb", 10, "a\uFFFDb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) is not valid UTF-8", tt.in, tt.n)
			}
		})
	}
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	s := snippet(strings.Repeat("x", maxSnippet-1) + "ü trailing")
	if !utf8.ValidString(s) {
		t.Fatalf("snippet is not valid UTF-8: %q", s)
	}
	if !strings.HasSuffix(s, "x...") {
		t.Errorf("snippet = %q, want cut before the two-byte rune", s[len(s)-10:])
	}
}
