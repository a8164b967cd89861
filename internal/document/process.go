// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrTooLarge is returned for uploads over the configured size limit.
var ErrTooLarge = errors.New("file too large")

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Processor stores an upload, extracts its text, and analyzes it.
type Processor struct {
	Extractor *Extractor
	Analyzer  *Analyzer
	Config    types.DocumentConfig

	// Now stamps stored filenames; nil means time.Now.
	Now func() time.Time
}

// IsValidation reports whether err was caused by the upload itself
// rather than by the server.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrTooShort) || errors.Is(err, ErrTooLarge)
}

// Process saves r as filename in the upload directory, extracts and
// analyzes it, and returns the Document ready to store for chatID. The
// saved file is removed when any step fails.
func (p *Processor) Process(ctx context.Context, chatID int64, filename string, r io.Reader) (types.Document, Analysis, error) {
	if !Allowed(filename) {
		return types.Document{}, Analysis{}, ErrUnsupportedType
	}
	name := SafeFilename(filename)

	path, size, err := p.save(name, r)
	if err != nil {
		return types.Document{}, Analysis{}, err
	}
	log := logging.Get().With(zap.String("filename", name), zap.Int64("size", size))

	text, err := p.Extractor.Extract(ctx, path)
	if err != nil {
		RemoveUpload(path)
		return types.Document{}, Analysis{}, err
	}

	a, err := p.Analyzer.Analyze(ctx, name, text)
	if err != nil {
		RemoveUpload(path)
		return types.Document{}, Analysis{}, err
	}
	log.Info("document analyzed",
		zap.Int("words", a.WordCount),
		zap.Int("genuineness", a.Genuineness.Score))

	return types.Document{
		ChatID:              chatID,
		Filename:            name,
		FilePath:            path,
		FileType:            FileType(name),
		FileSize:            size,
		ExtractedText:       text,
		Summary:             a.Summary,
		GenuinenessScore:    a.Genuineness.Score,
		GenuinenessAnalysis: a.Genuineness.Analysis,
		WordCount:           a.WordCount,
	}, a, nil
}

// save writes r to a timestamped file, enforcing the size limit while
// copying.
func (p *Processor) save(name string, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(p.Config.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating upload directory: %w", err)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	path := filepath.Join(p.Config.UploadDir, now().Format("20060102_150405")+"_"+name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating upload file: %w", err)
	}

	limit := p.Config.MaxFileSize
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		RemoveUpload(path)
		return "", 0, fmt.Errorf("writing upload: %w", err)
	}
	if limit > 0 && n > limit {
		RemoveUpload(path)
		return "", 0, fmt.Errorf("%w, maximum size is %dMB", ErrTooLarge, limit>>20)
	}
	return path, n, nil
}

// SafeFilename reduces name to its base with only letters, digits, dots,
// underscores and hyphens.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// RemoveUpload deletes a saved upload. A missing file is not an error.
func RemoveUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Get().Warn("removing upload", zap.String("path", path), zap.Error(err))
	}
}

// Answer responds to question from doc using the processor's analyzer.
func (p *Processor) Answer(ctx context.Context, doc types.Document, question string) (string, error) {
	return p.Analyzer.Answer(ctx, doc, question)
}
