// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// relevancePromptTmpl is the prompt sent to the model for each paper. It is
// a pure function of the paper and the survey configuration so that the same
// inputs always produce the same request.
var relevancePromptTmpl = template.Must(template.New("relevance").Parse(`You are an expert researcher evaluating academic papers for a systematic literature review.

SURVEY TOPIC: {{.Topic}}
{{- if .Description}}
SURVEY DESCRIPTION: {{.Description}}
{{- end}}
{{- if .Keywords}}
KEY TERMS: {{.Keywords}}
{{- end}}

PAPER TO EVALUATE:
Title: {{.Title}}
Abstract: {{.Abstract}}
Conference: {{.Venue}}

TASK: Evaluate this paper's relevance to the survey topic.

RATING GUIDELINES:
- High: Directly addresses the survey topic, core contribution aligns with survey scope
- Medium: Related to topic but not central, partial overlap or tangential relevance
- Low: Minimal connection, outside survey scope, or unrelated

INSTRUCTIONS:
1. Analyze the paper's title and abstract carefully
2. Determine relevance level based on topic alignment
3. Provide a confidence score between 0.0 and 1.0 based on how certain you are
4. Give brief reasoning for your decision (2-3 sentences)

Respond with a single JSON object and nothing else, using exactly these fields:
{"rating": "High" | "Medium" | "Low", "confidence": <number between 0.0 and 1.0>, "reasoning": "<2-3 sentences>"}

Example response:
{"rating": "Medium", "confidence": 0.7, "reasoning": "The paper studies a closely related problem but its main contribution is outside the survey scope."}
`))

type promptData struct {
	Topic       string
	Description string
	Keywords    string
	Title       string
	Abstract    string
	Venue       string
}

// RenderPrompt builds the relevance prompt for one paper.
func RenderPrompt(paper types.Paper, survey types.SurveyConfig) (string, error) {
	abstract := strings.TrimSpace(paper.Abstract)
	if abstract == "" {
		abstract = "No abstract available"
	}
	venue := strings.TrimSpace(paper.Conference)
	if paper.Year > 0 {
		venue = strings.TrimSpace(venue + " " + strconv.Itoa(paper.Year))
	}

	data := promptData{
		Topic:       strings.TrimSpace(survey.Topic),
		Description: strings.TrimSpace(survey.Description),
		Keywords:    strings.Join(survey.Keywords, ", "),
		Title:       paper.Title,
		Abstract:    abstract,
		Venue:       venue,
	}

	var buf bytes.Buffer
	if err := relevancePromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
