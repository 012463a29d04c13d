// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Counts tallies judgments by outcome.
type Counts struct {
	Total  int
	High   int
	Medium int
	Low    int
	Failed int
}

func (c *Counts) add(r types.JudgmentResult) {
	c.Total++
	if !r.Succeeded() {
		c.Failed++
		return
	}
	switch r.Rating {
	case types.RatingHigh:
		c.High++
	case types.RatingMedium:
		c.Medium++
	case types.RatingLow:
		c.Low++
	}
}

// HighPercent returns the share of High ratings as a percentage.
func (c Counts) HighPercent() float64 { return percent(c.High, c.Total) }

// Stats is the rating distribution overall, per conference, and per year.
type Stats struct {
	Overall      Counts
	Conferences  []string
	ByConference map[string]*Counts
	Years        []int
	ByYear       map[int]*Counts
}

// Summarize computes Stats over rows.
func Summarize(rows []Row) Stats {
	s := Stats{
		ByConference: map[string]*Counts{},
		ByYear:       map[int]*Counts{},
	}
	for _, r := range rows {
		s.Overall.add(r.Result)

		conf := r.Paper.Conference
		if s.ByConference[conf] == nil {
			s.ByConference[conf] = &Counts{}
			s.Conferences = append(s.Conferences, conf)
		}
		s.ByConference[conf].add(r.Result)

		year := r.Paper.Year
		if s.ByYear[year] == nil {
			s.ByYear[year] = &Counts{}
			s.Years = append(s.Years, year)
		}
		s.ByYear[year].add(r.Result)
	}
	sort.Strings(s.Conferences)
	sort.Ints(s.Years)
	return s
}

// WriteSummary writes s to path as a sectioned CSV.
func WriteSummary(path string, s Stats) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		o := s.Overall
		records := [][]string{
			{"Overall Statistics"},
			{"Metric", "Count", "Percentage"},
			{"Total Papers", strconv.Itoa(o.Total), pct(o.Total, o.Total)},
			{"High Relevance", strconv.Itoa(o.High), pct(o.High, o.Total)},
			{"Medium Relevance", strconv.Itoa(o.Medium), pct(o.Medium, o.Total)},
			{"Low Relevance", strconv.Itoa(o.Low), pct(o.Low, o.Total)},
		}
		if o.Failed > 0 {
			records = append(records, []string{"Failed", strconv.Itoa(o.Failed), pct(o.Failed, o.Total)})
		}
		records = append(records, []string{},
			[]string{"Conference Breakdown"},
			breakdownHeader("Conference"))
		for _, conf := range s.Conferences {
			records = append(records, breakdownRow(conf, s.ByConference[conf]))
		}
		records = append(records, []string{},
			[]string{"Year Breakdown"},
			breakdownHeader("Year"))
		for _, year := range s.Years {
			records = append(records, breakdownRow(strconv.Itoa(year), s.ByYear[year]))
		}
		if err := cw.WriteAll(records); err != nil {
			return err
		}
		return cw.Error()
	})
}

// FormatDistribution writes a one-line rating distribution to w.
func FormatDistribution(c Counts, w io.Writer) {
	fmt.Fprintf(w, "Relevance distribution: High=%d, Medium=%d, Low=%d", c.High, c.Medium, c.Low)
	if c.Failed > 0 {
		fmt.Fprintf(w, ", Failed=%d", c.Failed)
	}
	fmt.Fprintln(w)
}

func breakdownHeader(key string) []string {
	return []string{key, "Total", "High", "Medium", "Low", "Failed", "High%"}
}

func breakdownRow(key string, c *Counts) []string {
	return []string{
		key,
		strconv.Itoa(c.Total),
		strconv.Itoa(c.High),
		strconv.Itoa(c.Medium),
		strconv.Itoa(c.Low),
		strconv.Itoa(c.Failed),
		pct(c.High, c.Total),
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func pct(n, total int) string {
	return fmt.Sprintf("%.1f%%", percent(n, total))
}
