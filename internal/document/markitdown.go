// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

const imageMarkitdown = "markitdown:latest"

// commander runs container CLI commands. Tests replace it.
type commander interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osCommander) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	return cmd.Run()
}

// runtimes lists the supported container CLIs in preference order, with
// the arguments that check for a local image.
var runtimes = []struct {
	bin        string
	imageCheck []string
}{
	{"docker", []string{"image", "inspect"}},
	{"podman", []string{"image", "exists"}},
}

// MarkitdownConverter converts documents to Markdown by piping them
// through the markitdown container image.
type MarkitdownConverter struct {
	bin string
	cmd commander
}

// DetectMarkitdown finds a working docker or podman with the markitdown
// image available locally.
func DetectMarkitdown(ctx context.Context) (*MarkitdownConverter, error) {
	return detectMarkitdown(ctx, osCommander{})
}

func detectMarkitdown(ctx context.Context, cmd commander) (*MarkitdownConverter, error) {
	for _, rt := range runtimes {
		if _, err := cmd.LookPath(rt.bin); err != nil {
			continue
		}
		if err := cmd.Run(ctx, rt.bin, []string{"info"}, nil, io.Discard); err != nil {
			continue
		}
		args := append(append([]string{}, rt.imageCheck...), imageMarkitdown)
		if err := cmd.Run(ctx, rt.bin, args, nil, io.Discard); err != nil {
			return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.bin, err)
		}
		return &MarkitdownConverter{bin: rt.bin, cmd: cmd}, nil
	}
	return nil, fmt.Errorf("no container runtime available: neither docker nor podman found or operational")
}

// Runtime names the container CLI in use.
func (m *MarkitdownConverter) Runtime() string { return m.bin }

// Convert pipes the file at path through markitdown and returns its output.
func (m *MarkitdownConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.cmd.Run(ctx, m.bin, []string{"run", "--rm", "-i", imageMarkitdown}, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output for %s", path)
	}
	return out.String(), nil
}
