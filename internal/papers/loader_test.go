// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const iclrPapers = `[
  {"title": "Sparse Attention at Scale", "authors": ["A. Smith", "B. Jones"], "abstract": "We study sparse attention.",
   "publication_year": 2024, "conference_name": "ICLR", "venue_type": "conference", "scraped_at": "2024-05-01T10:00:00"},
  {"title": "Graph Rewiring", "authors": ["C. Lee"], "abstract": null,
   "publication_year": 2024, "conference_name": "ICLR", "venue_type": "conference"}
]`

const icmlPapers = `[
  {"title": "Retrieval Augmented Agents", "authors": [], "abstract": "Agents that retrieve.",
   "publication_year": 2023, "conference_name": "ICML", "venue_type": "conference", "track": "main"}
]`

func titles(ps []types.Paper) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func TestLoad_DirectoryInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_icml_2023.json", icmlPapers)
	writeFile(t, dir, "a_iclr_2024.json", iclrPapers)
	writeFile(t, dir, "notes.txt", "ignored")

	res, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Sparse Attention at Scale", "Graph Rewiring", "Retrieval Augmented Agents"}, titles(res.Papers))
	assert.Len(t, res.Files, 2)
	assert.Equal(t, "a_iclr_2024.json", res.Papers[0].SourceFile)
	assert.Equal(t, "b_icml_2023.json", res.Papers[2].SourceFile)
	assert.Equal(t, "main", res.Papers[2].Track)
	assert.Empty(t, res.Papers[1].Abstract)
	assert.Equal(t, 2024, res.Papers[0].ScrapedAt.Year())
}

func TestLoad_ExplicitFileOrderWins(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", iclrPapers)
	b := writeFile(t, dir, "b.json", icmlPapers)

	res, err := Load([]string{b, a}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Retrieval Augmented Agents", res.Papers[0].Title)
}

func TestLoad_DuplicateFirstOccurrenceWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", iclrPapers)
	writeFile(t, dir, "b.json", `[
	  {"title": "Sparse Attention at Scale", "authors": ["Someone Else"], "abstract": "later copy",
	   "publication_year": 2024, "conference_name": "ICLR", "venue_type": "conference"},
	  {"title": "Sparse Attention at Scale", "authors": [], "abstract": "different year is a different paper",
	   "publication_year": 2025, "conference_name": "ICLR", "venue_type": "conference"}
	]`)

	res, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	require.Len(t, res.Papers, 3)
	assert.Equal(t, "We study sparse attention.", res.Papers[0].Abstract)
	assert.Equal(t, 2025, res.Papers[2].Year)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "b.json", res.Duplicates[0].File)
	assert.Equal(t, "a.json", res.Duplicates[0].FirstFile)
}

func TestLoad_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"title": "not an array"}`)
	writeFile(t, dir, "b.json", icmlPapers)

	res, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	require.Len(t, res.Papers, 1)
	require.Len(t, res.FormatErrs, 1)
	assert.Equal(t, -1, res.FormatErrs[0].Record)
	assert.Contains(t, res.FormatErrs[0].Error(), "a.json")

	var fe *InputFormatError
	assert.True(t, errors.As(error(res.FormatErrs[0]), &fe))
}

func TestLoad_RecordMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[
	  {"authors": [], "publication_year": 2024, "conference_name": "ICLR", "venue_type": "conference"},
	  {"title": "No Year", "authors": [], "conference_name": "ICLR", "venue_type": "conference"},
	  {"title": "Complete", "authors": ["X"], "publication_year": 2024, "conference_name": "ICLR", "venue_type": "conference"}
	]`)

	res, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Complete"}, titles(res.Papers))
	require.Len(t, res.FormatErrs, 2)
	assert.Equal(t, 0, res.FormatErrs[0].Record)
	assert.True(t, strings.Contains(res.FormatErrs[0].Error(), "missing title"))
	assert.Equal(t, 1, res.FormatErrs[1].Record)
	assert.True(t, strings.Contains(res.FormatErrs[1].Error(), "missing publication_year"))
}

func TestLoad_MissingPathIsFatal(t *testing.T) {
	_, err := Load([]string{filepath.Join(t.TempDir(), "nope")}, nil)
	require.Error(t, err)

	var fe *InputFormatError
	assert.False(t, errors.As(err, &fe))
}

func TestLoad_PaperIDIsStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", iclrPapers)

	first, err := Load([]string{dir}, nil)
	require.NoError(t, err)
	second, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Papers[0].ID, second.Papers[0].ID)
	assert.Equal(t, types.PaperID("Sparse Attention at Scale", "ICLR", 2024), first.Papers[0].ID)
	assert.NotEqual(t, first.Papers[0].ID, first.Papers[1].ID)
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", iclrPapers)
	writeFile(t, dir, "b.json", icmlPapers)

	res, err := Load([]string{dir}, nil)
	require.NoError(t, err)

	s := Summarize(res)
	assert.Equal(t, 3, s.TotalPapers)
	assert.Equal(t, map[string]int{"ICLR": 2, "ICML": 1}, s.Conferences)
	assert.Equal(t, map[int]int{2024: 2, 2023: 1}, s.Years)
	require.Len(t, s.Files, 2)
	assert.Equal(t, "a.json", s.Files[0].File)
	assert.Equal(t, 2, s.Files[0].Papers)

	var buf strings.Builder
	FormatSummary(s, &buf)
	assert.Contains(t, buf.String(), "Found 3 papers across 2 files")
	assert.Contains(t, buf.String(), "ICLR=2")
}
