// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const longText = "Photosynthesis converts light energy into chemical energy stored in glucose molecules."

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeDOCX(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+body+`</w:body></w:document>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestAllowed(t *testing.T) {
	tests := map[string]bool{
		"paper.pdf": true, "Notes.TXT": true, "thesis.docx": true,
		"image.png": false, "noext": false, "archive.pdf.zip": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, Allowed(name), name)
	}
}

func TestExtract_TXT(t *testing.T) {
	text, err := Extract(writeFile(t, "a.txt", []byte("  "+longText+"\n")))
	require.NoError(t, err)
	assert.Equal(t, longText, text)
}

func TestExtract_TXTLatin1(t *testing.T) {
	data := []byte(longText + " caf\xe9")
	text, err := Extract(writeFile(t, "a.txt", data))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "café"))
}

func TestExtract_DOCX(t *testing.T) {
	path := writeDOCX(t,
		`<w:p><w:r><w:t>Photosynthesis converts light energy</w:t></w:r><w:r><w:t xml:space="preserve"> into chemical energy.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph with more words.</w:t></w:r></w:p>`)
	text, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light energy into chemical energy.\nSecond\tparagraph with more words.", text)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract(writeFile(t, "short.txt", []byte("too short")))
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = Extract(writeFile(t, "a.png", []byte(longText)))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Extract(writeFile(t, "bad.docx", []byte("not a zip")))
	assert.Error(t, err)

	_, err = Extract(writeFile(t, "bad.pdf", []byte("not a pdf")))
	assert.Error(t, err)
}

// fakeCommander simulates docker or podman.
type fakeCommander struct {
	bins   map[string]bool
	failOn map[string]bool
	output string
	ran    []string
}

func (f *fakeCommander) LookPath(file string) (string, error) {
	if f.bins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found")
}

func (f *fakeCommander) Run(_ context.Context, name string, args []string, _ io.Reader, stdout io.Writer) error {
	key := name + " " + strings.Join(args, " ")
	f.ran = append(f.ran, key)
	if f.failOn[key] {
		return errors.New("exit 1")
	}
	if len(args) > 0 && args[0] == "run" {
		_, _ = io.WriteString(stdout, f.output)
	}
	return nil
}

func TestDetectMarkitdown(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *fakeCommander
		want    string
		wantErr bool
	}{
		{"docker", &fakeCommander{bins: map[string]bool{"docker": true, "podman": true}}, "docker", false},
		{"podman when docker info fails", &fakeCommander{
			bins:   map[string]bool{"docker": true, "podman": true},
			failOn: map[string]bool{"docker info": true},
		}, "podman", false},
		{"image missing", &fakeCommander{
			bins:   map[string]bool{"docker": true},
			failOn: map[string]bool{"docker image inspect markitdown:latest": true},
		}, "", true},
		{"no runtime", &fakeCommander{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := detectMarkitdown(context.Background(), tt.cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Runtime())
		})
	}
}

func TestExtract_PDFFallsBackToMarkitdown(t *testing.T) {
	cmd := &fakeCommander{bins: map[string]bool{"docker": true}, output: "# Converted\n\n" + longText}
	m, err := detectMarkitdown(context.Background(), cmd)
	require.NoError(t, err)

	e := &Extractor{Fallback: m}
	text, err := e.Extract(context.Background(), writeFile(t, "scan.pdf", []byte("not a real pdf")))
	require.NoError(t, err)
	assert.Contains(t, text, longText)
	assert.Contains(t, cmd.ran, "docker run --rm -i markitdown:latest")
}

// docLLM answers document prompts by kind.
type docLLM struct {
	summary, genuineness, answer string
	genErr                       error
	prompts                      []string
}

func (d *docLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	d.prompts = append(d.prompts, req.Prompt)
	switch {
	case strings.HasPrefix(req.Prompt, "Summarize"):
		return d.summary, nil
	case strings.HasPrefix(req.Prompt, "Assess"):
		return d.genuineness, d.genErr
	default:
		return d.answer, nil
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Authenticity Score: 8\nAnalysis: fine", 8},
		{"**Authenticity Score**: 3/10", 3},
		{"authenticity score - 10", 10},
		{"Authenticity Score: 0", 5},
		{"Authenticity Score: 42", 5},
		{"No score here", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseScore(tt.in), tt.in)
	}
}

func TestConfidenceFor(t *testing.T) {
	tests := map[int]string{0: ConfidenceLow, 1: ConfidenceHigh, 3: ConfidenceHigh, 4: ConfidenceMedium,
		6: ConfidenceMedium, 7: ConfidenceMedium, 8: ConfidenceHigh, 10: ConfidenceHigh}
	for score, want := range tests {
		assert.Equal(t, want, ConfidenceFor(score), "score %d", score)
	}
}

func TestAnalyze(t *testing.T) {
	l := &docLLM{summary: "A summary.", genuineness: "Authenticity Score: 7\nAnalysis: consistent."}
	a := &Analyzer{LLM: l, Prompts: prompts.Default()}

	text := strings.Repeat("word ", 1000)
	got, err := a.Analyze(context.Background(), "paper.pdf", text)
	require.NoError(t, err)

	assert.Equal(t, "A summary.", got.Summary)
	assert.Equal(t, 7, got.Genuineness.Score)
	assert.True(t, got.Genuineness.Genuine)
	assert.Equal(t, ConfidenceMedium, got.Genuineness.Confidence)
	assert.Equal(t, 1000, got.WordCount)

	require.Len(t, l.prompts, 2)
	assert.Contains(t, l.prompts[0], "Document (paper.pdf):")
	assert.Equal(t, summaryChars/5, strings.Count(l.prompts[0], "word"))
	assert.Equal(t, genuinenessChars/5, strings.Count(l.prompts[1], "word"))
}

func TestAnalyze_GenuinenessFailure(t *testing.T) {
	l := &docLLM{summary: "A summary.", genErr: &llm.Error{Kind: llm.KindTimeout, Err: errors.New("slow")}}
	a := &Analyzer{LLM: l, Prompts: prompts.Default()}

	got, err := a.Analyze(context.Background(), "paper.pdf", longText)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Genuineness.Score)
	assert.False(t, got.Genuineness.Genuine)
	assert.Equal(t, ConfidenceLow, got.Genuineness.Confidence)
}

func TestAnalyze_SummaryFailure(t *testing.T) {
	l := &docLLM{summary: ""}
	a := &Analyzer{LLM: l, Prompts: prompts.Default()}
	_, err := a.Analyze(context.Background(), "paper.pdf", longText)
	assert.True(t, llm.IsKind(err, llm.KindMalformedOutput))
}

func TestAnswer(t *testing.T) {
	doc := types.Document{Filename: "paper.pdf", ExtractedText: longText, GenuinenessAnalysis: "Looks legitimate."}
	a := &Analyzer{LLM: &docLLM{answer: "It is about photosynthesis."}, Prompts: prompts.Default()}

	got, err := a.Answer(context.Background(), doc, "What is this about?")
	require.NoError(t, err)
	assert.Equal(t, "It is about photosynthesis.", got)

	got, err = a.Answer(context.Background(), doc, "Can I TRUST this paper?")
	require.NoError(t, err)
	assert.Equal(t, "It is about photosynthesis.\n\n## Document Authenticity Analysis\n\nLooks legitimate.", got)
}

func newProcessor(t *testing.T, l llm.Client) *Processor {
	return &Processor{
		Extractor: &Extractor{},
		Analyzer:  &Analyzer{LLM: l, Prompts: prompts.Default()},
		Config:    types.DocumentConfig{UploadDir: t.TempDir(), MaxFileSize: 1024},
		Now:       func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) },
	}
}

func TestProcess(t *testing.T) {
	l := &docLLM{summary: "Summary.", genuineness: "Authenticity Score: 9"}
	p := newProcessor(t, l)

	doc, a, err := p.Process(context.Background(), 3, "../My Paper.txt", strings.NewReader(longText))
	require.NoError(t, err)

	assert.Equal(t, int64(3), doc.ChatID)
	assert.Equal(t, "My_Paper.txt", doc.Filename)
	assert.Equal(t, filepath.Join(p.Config.UploadDir, "20260203_040506_My_Paper.txt"), doc.FilePath)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, int64(len(longText)), doc.FileSize)
	assert.Equal(t, 9, doc.GenuinenessScore)
	assert.Equal(t, ConfidenceHigh, a.Genuineness.Confidence)
	assert.FileExists(t, doc.FilePath)
}

func TestProcess_RejectsAndCleansUp(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		want     error
	}{
		{"unsupported", "image.png", longText, ErrUnsupportedType},
		{"too large", "big.txt", strings.Repeat("x", 2048), ErrTooLarge},
		{"too short", "short.txt", "tiny", ErrTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(t, &docLLM{})
			_, _, err := p.Process(context.Background(), 1, tt.filename, strings.NewReader(tt.body))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))

			entries, _ := os.ReadDir(p.Config.UploadDir)
			assert.Empty(t, entries)
		})
	}
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":             "paper.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\notes.txt`: "notes.txt",
		"my résumé (1).docx":    "my_r_sum_1_.docx",
		"...":                   "upload",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeFilename(in), in)
	}
}
