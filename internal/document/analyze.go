// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Prompt text limits, in characters.
const (
	summaryChars     = 4000
	genuinenessChars = 3000
	answerChars      = 6000
)

const (
	// neutralScore is used when the model's reply carries no readable score.
	neutralScore = 5
	// genuineThreshold is the lowest score considered genuine.
	genuineThreshold = 6
)

// Confidence levels of an authenticity score.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

const analysisFailed = "Genuineness analysis could not be completed."

// authenticityKeywords mark questions that ask whether a document can be trusted.
var authenticityKeywords = []string{"genuine", "authentic", "real", "fake", "trust", "quality"}

var scorePattern = regexp.MustCompile(`(?i)authenticity score\D*(\d+)`)

// Genuineness is the authenticity assessment of a document.
type Genuineness struct {
	Score      int    `json:"score"`
	Analysis   string `json:"analysis"`
	Genuine    bool   `json:"is_genuine"`
	Confidence string `json:"confidence"`
}

// Analysis is the result of analyzing an extracted document.
type Analysis struct {
	Summary     string      `json:"summary"`
	Genuineness Genuineness `json:"genuineness"`
	WordCount   int         `json:"word_count"`
	CharCount   int         `json:"char_count"`
}

// Analyzer asks the model about document text.
type Analyzer struct {
	LLM       llm.Client
	Prompts   *prompts.Set
	MaxTokens int
}

type docPrompt struct {
	Filename string
	Text     string
	Question string
}

// Analyze summarizes text and scores its authenticity. A failed summary
// is an error; a failed authenticity check yields score 0.
func (a *Analyzer) Analyze(ctx context.Context, filename, text string) (Analysis, error) {
	summary, err := a.ask(ctx, prompts.DocumentSummary, docPrompt{Filename: filename, Text: head(text, summaryChars)})
	if err != nil {
		return Analysis{}, fmt.Errorf("summarizing document: %w", err)
	}

	return Analysis{
		Summary:     summary,
		Genuineness: a.genuineness(ctx, filename, text),
		WordCount:   len(strings.Fields(text)),
		CharCount:   len([]rune(text)),
	}, nil
}

func (a *Analyzer) genuineness(ctx context.Context, filename, text string) Genuineness {
	reply, err := a.ask(ctx, prompts.DocumentGenuineness, docPrompt{Filename: filename, Text: head(text, genuinenessChars)})
	if err != nil {
		logging.Get().Warn("genuineness analysis failed", zap.String("filename", filename), zap.Error(err))
		return Genuineness{Score: 0, Analysis: analysisFailed, Genuine: false, Confidence: ConfidenceLow}
	}
	score := ParseScore(reply)
	return Genuineness{
		Score:      score,
		Analysis:   reply,
		Genuine:    score >= genuineThreshold,
		Confidence: ConfidenceFor(score),
	}
}

// Answer responds to question from the document's text. Questions about
// authenticity get the stored analysis appended.
func (a *Analyzer) Answer(ctx context.Context, doc types.Document, question string) (string, error) {
	answer, err := a.ask(ctx, prompts.DocumentAnswer, docPrompt{
		Filename: doc.Filename,
		Text:     head(doc.ExtractedText, answerChars),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("answering from document: %w", err)
	}
	if asksAuthenticity(question) && doc.GenuinenessAnalysis != "" {
		answer += "\n\n## Document Authenticity Analysis\n\n" + doc.GenuinenessAnalysis
	}
	return answer, nil
}

func (a *Analyzer) ask(ctx context.Context, name prompts.Name, data docPrompt) (string, error) {
	prompt, err := a.Prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	out, err := a.LLM.Complete(ctx, llm.Request{Prompt: prompt, MaxTokens: a.MaxTokens})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.Error{Kind: llm.KindMalformedOutput, Provider: "document", Err: fmt.Errorf("empty reply")}
	}
	return out, nil
}

// ParseScore reads "Authenticity Score: N" from reply. Scores outside
// 1-10, or a missing score, give the neutral score 5.
func ParseScore(reply string) int {
	m := scorePattern.FindStringSubmatch(reply)
	if m == nil {
		return neutralScore
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return neutralScore
	}
	return n
}

// ConfidenceFor rates how decisive a score is: High at 8 and above or 3
// and below, Medium in between, Low when no score was produced.
func ConfidenceFor(score int) string {
	switch {
	case score <= 0:
		return ConfidenceLow
	case score >= 8 || score <= 3:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func asksAuthenticity(question string) bool {
	q := strings.ToLower(question)
	for _, k := range authenticityKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
