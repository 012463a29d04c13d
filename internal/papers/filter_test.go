package papers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/survey-engine/pkg/types"
)

func samplePapers() []types.Paper {
	return []types.Paper{
		{Title: "Diffusion Models for Video", Abstract: "Generative video.", Year: 2022, Conference: "NeurIPS"},
		{Title: "Contrastive Pretraining", Abstract: "Self-supervised diffusion of ideas.", Year: 2023, Conference: "ICML"},
		{Title: "Robust Optimizers", Abstract: "", Year: 2024, Conference: "ICLR"},
		{Title: "Language Agents", Abstract: "Tool use.", Year: 2025, Conference: "iclr"},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.FilterConfig
		want []string
	}{
		{
			name: "empty config keeps all",
			cfg:  types.FilterConfig{},
			want: []string{"Diffusion Models for Video", "Contrastive Pretraining", "Robust Optimizers", "Language Agents"},
		},
		{
			name: "year range inclusive",
			cfg:  types.FilterConfig{YearFrom: 2023, YearTo: 2024},
			want: []string{"Contrastive Pretraining", "Robust Optimizers"},
		},
		{
			name: "open upper bound",
			cfg:  types.FilterConfig{YearFrom: 2024},
			want: []string{"Robust Optimizers", "Language Agents"},
		},
		{
			name: "conference case-insensitive",
			cfg:  types.FilterConfig{Conferences: []string{"ICLR"}},
			want: []string{"Robust Optimizers", "Language Agents"},
		},
		{
			name: "keywords match title or abstract",
			cfg:  types.FilterConfig{Keywords: []string{"DIFFUSION"}},
			want: []string{"Diffusion Models for Video", "Contrastive Pretraining"},
		},
		{
			name: "filters combine",
			cfg:  types.FilterConfig{YearFrom: 2023, Keywords: []string{"diffusion"}},
			want: []string{"Contrastive Pretraining"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(samplePapers(), tt.cfg)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}
