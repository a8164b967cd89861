// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document extracts text from uploaded files and analyzes it with
// the language model: a summary, an authenticity score, and answers to
// questions about the document.
package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/pdiddy/research-assistant/internal/logging"
)

// MinTextChars is the shortest extracted text accepted for analysis.
const MinTextChars = 50

var (
	// ErrUnsupportedType is returned for extensions other than pdf, docx and txt.
	ErrUnsupportedType = errors.New("file type not allowed, upload PDF, TXT, or DOCX files")
	// ErrTooShort is returned when a document yields almost no text.
	ErrTooShort = errors.New("document appears to be empty or too short")
)

var allowedTypes = map[string]bool{"pdf": true, "docx": true, "txt": true}

// FileType returns the lowercased extension of filename without the dot.
func FileType(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Allowed reports whether filename has a supported extension.
func Allowed(filename string) bool {
	return allowedTypes[FileType(filename)]
}

// Extractor reads the text of a supported file. When a PDF yields too
// little text and Fallback is set, the file is converted by Fallback
// instead (scanned PDFs, unusual encodings).
type Extractor struct {
	Fallback *MarkitdownConverter
}

// Extract reads path with the default extractor.
func Extract(path string) (string, error) {
	var e Extractor
	return e.Extract(context.Background(), path)
}

// Extract returns the trimmed text of the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	var (
		text string
		err  error
	)
	switch FileType(path) {
	case "pdf":
		text, err = extractPDF(path)
		if e.Fallback != nil && (err != nil || len(strings.TrimSpace(text)) < MinTextChars) {
			logging.Get().Info("pdf text sparse, converting with markitdown",
				zap.String("path", path), zap.Error(err))
			text, err = e.Fallback.Convert(ctx, path)
		}
	case "docx":
		text, err = extractDOCX(path)
	case "txt":
		text, err = extractTXT(path)
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextChars {
		return "", ErrTooShort
	}
	return text, nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX reads word/document.xml and joins its paragraphs with newlines.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to extract DOCX text: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to extract DOCX text: %w", err)
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", errors.New("failed to extract DOCX text: word/document.xml missing")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to extract DOCX text: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// extractTXT reads UTF-8 text, decoding as Latin-1 when the bytes are not
// valid UTF-8.
func extractTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding text file: %w", err)
	}
	return string(decoded), nil
}
