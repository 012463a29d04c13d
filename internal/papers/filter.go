// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Filter returns the papers that pass every configured filter, preserving
// order. An empty FilterConfig keeps everything.
func Filter(papers []types.Paper, cfg types.FilterConfig) []types.Paper {
	out := papers
	if cfg.YearFrom > 0 || cfg.YearTo > 0 {
		out = FilterByYear(out, cfg.YearFrom, cfg.YearTo)
	}
	if len(cfg.Conferences) > 0 {
		out = FilterByConference(out, cfg.Conferences)
	}
	if len(cfg.Keywords) > 0 {
		out = FilterByKeywords(out, cfg.Keywords)
	}
	return out
}

// FilterByYear keeps papers published within [from, to]. A zero bound is open.
func FilterByYear(papers []types.Paper, from, to int) []types.Paper {
	var out []types.Paper
	for _, p := range papers {
		if from > 0 && p.Year < from {
			continue
		}
		if to > 0 && p.Year > to {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterByConference keeps papers whose conference matches one of names,
// ignoring case.
func FilterByConference(papers []types.Paper, names []string) []types.Paper {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToUpper(strings.TrimSpace(n))] = true
	}
	var out []types.Paper
	for _, p := range papers {
		if want[strings.ToUpper(p.Conference)] {
			out = append(out, p)
		}
	}
	return out
}

// FilterByKeywords keeps papers whose title or abstract contains any keyword,
// ignoring case.
func FilterByKeywords(papers []types.Paper, keywords []string) []types.Paper {
	var kws []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return papers
	}
	var out []types.Paper
	for _, p := range papers {
		title := strings.ToLower(p.Title)
		abstract := strings.ToLower(p.Abstract)
		for _, k := range kws {
			if strings.Contains(title, k) || strings.Contains(abstract, k) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
