// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// FileSummary counts the papers contributed by one input file.
type FileSummary struct {
	File        string   `json:"file" yaml:"file"`
	Papers      int      `json:"papers" yaml:"papers"`
	Conferences []string `json:"conferences" yaml:"conferences"`
	Years       []int    `json:"years" yaml:"years"`
}

// Summary describes a loaded paper collection.
type Summary struct {
	TotalPapers  int            `json:"total_papers" yaml:"total_papers"`
	Files        []FileSummary  `json:"files" yaml:"files"`
	Conferences  map[string]int `json:"conferences" yaml:"conferences"`
	Years        map[int]int    `json:"years" yaml:"years"`
	Duplicates   int            `json:"duplicates" yaml:"duplicates"`
	FormatErrors int            `json:"format_errors" yaml:"format_errors"`
}

// Summarize builds a Summary from a load result.
func Summarize(res LoadResult) Summary {
	s := Summary{
		TotalPapers:  len(res.Papers),
		Conferences:  map[string]int{},
		Years:        map[int]int{},
		Duplicates:   len(res.Duplicates),
		FormatErrors: len(res.FormatErrs),
	}

	byFile := map[string]*FileSummary{}
	var order []string
	for _, p := range res.Papers {
		s.Conferences[p.Conference]++
		s.Years[p.Year]++

		fs, ok := byFile[p.SourceFile]
		if !ok {
			fs = &FileSummary{File: p.SourceFile}
			byFile[p.SourceFile] = fs
			order = append(order, p.SourceFile)
		}
		fs.Papers++
		if !containsString(fs.Conferences, p.Conference) {
			fs.Conferences = append(fs.Conferences, p.Conference)
		}
		if !containsInt(fs.Years, p.Year) {
			fs.Years = append(fs.Years, p.Year)
		}
	}
	for _, name := range order {
		fs := byFile[name]
		sort.Strings(fs.Conferences)
		sort.Ints(fs.Years)
		s.Files = append(s.Files, *fs)
	}
	return s
}

// FormatSummary writes a human-readable summary to w.
func FormatSummary(s Summary, w io.Writer) {
	fmt.Fprintf(w, "Found %d papers across %d files\n", s.TotalPapers, len(s.Files))
	if s.Duplicates > 0 || s.FormatErrors > 0 {
		fmt.Fprintf(w, "(%d duplicates dropped, %d malformed inputs skipped)\n", s.Duplicates, s.FormatErrors)
	}
	if len(s.Files) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%-40s  %6s  %s\n", "File", "Papers", "Conferences")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, f := range s.Files {
		name := f.File
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(w, "%-40s  %6d  %s\n", name, f.Papers, strings.Join(f.Conferences, ","))
	}

	confs := make([]string, 0, len(s.Conferences))
	for c := range s.Conferences {
		confs = append(confs, c)
	}
	sort.Strings(confs)
	fmt.Fprintf(w, "\nConferences:")
	for _, c := range confs {
		fmt.Fprintf(w, " %s=%d", c, s.Conferences[c])
	}

	years := make([]int, 0, len(s.Years))
	for y := range s.Years {
		years = append(years, y)
	}
	sort.Ints(years)
	fmt.Fprintf(w, "\nYears:")
	for _, y := range years {
		fmt.Fprintf(w, " %d=%d", y, s.Years[y])
	}
	fmt.Fprintln(w)
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func containsInt(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}
