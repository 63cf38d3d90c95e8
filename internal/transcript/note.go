// Package transcript turns enhancement results into notes on disk.
//
// A [Note] is Markdown with an optional YAML frontmatter block that records
// where the note was routed, how confident the enhancement was, and which
// context entities it mentions. A [Writer] files notes under an output root
// without ever overwriting an earlier note. [Compare] summarises what the
// enhancement changed.
package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/scribe/internal/enhance"
	"github.com/MrWong99/scribe/internal/routing"
)

// Note is one enhanced transcript ready to be written.
type Note struct {
	Title       string `yaml:"title"`
	Date        string `yaml:"date,omitempty"`
	Source      string `yaml:"source,omitempty"`
	Project     string `yaml:"project,omitempty"`
	Destination string `yaml:"destination"`

	RoutingConfidence float64 `yaml:"routing_confidence"`
	Confidence        float64 `yaml:"confidence"`

	People    []string `yaml:"people,omitempty"`
	Projects  []string `yaml:"projects,omitempty"`
	Terms     []string `yaml:"terms,omitempty"`
	Companies []string `yaml:"companies,omitempty"`

	Body string `yaml:"-"`
}

// NewNote builds the note for res filed according to d.
func NewNote(res *enhance.Result, d routing.Decision, rc routing.Context) Note {
	n := Note{
		Title:             title(rc.SourceFile),
		Source:            filepath.Base(rc.SourceFile),
		Project:           d.ProjectID,
		Destination:       d.Destination,
		RoutingConfidence: d.Confidence,
	}
	if rc.SourceFile == "" {
		n.Source = ""
	}
	if !rc.AudioDate.IsZero() {
		n.Date = rc.AudioDate.Format("2006-01-02")
	}
	if res != nil {
		n.Confidence = res.State.Confidence
		n.Body = res.EnhancedText
		refs := res.State.ReferencedEntities
		n.People, n.Projects, n.Terms, n.Companies = refs.People, refs.Projects, refs.Terms, refs.Companies
	}
	return n
}

func title(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" || stem == "." {
		return "Transcript"
	}
	r, size := utf8.DecodeRuneInString(stem)
	return string(unicode.ToUpper(r)) + stem[size:]
}

// Render returns the note as Markdown, with the frontmatter block when
// frontmatter is set.
func (n Note) Render(frontmatter bool) ([]byte, error) {
	var buf bytes.Buffer
	if frontmatter {
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(n); err != nil {
			return nil, fmt.Errorf("transcript: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("transcript: encode frontmatter: %w", err)
		}
		buf.WriteString("---\n\n")
	}
	fmt.Fprintf(&buf, "# %s\n\n", n.Title)
	buf.WriteString(strings.TrimSpace(n.Body))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Writer files notes below a root directory.
type Writer struct {
	fs          afero.Fs
	root        string
	frontmatter bool
}

// NewWriter returns a Writer rooted at root on fsys.
func NewWriter(fsys afero.Fs, root string, frontmatter bool) *Writer {
	return &Writer{fs: fsys, root: root, frontmatter: frontmatter}
}

// Write stores n at rel below the root and returns the path written. An
// existing file is never replaced; a numeric suffix is added instead.
func (w *Writer) Write(ctx context.Context, rel string, n Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("transcript: write note: %w", err)
	}
	data, err := n.Render(w.frontmatter)
	if err != nil {
		return "", err
	}

	final := filepath.Join(w.root, rel)
	if err := w.fs.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("transcript: create %q: %w", filepath.Dir(final), err)
	}
	final, err = w.freePath(final)
	if err != nil {
		return "", err
	}

	tmp := final + ".tmp"
	if err := afero.WriteFile(w.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("transcript: write %q: %w", tmp, err)
	}
	if err := w.fs.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("transcript: rename %q: %w", final, err)
	}
	return final, nil
}

// freePath returns path, or path with "-2", "-3", ... before the extension
// when it is taken.
func (w *Writer) freePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 2; ; i++ {
		_, err := w.fs.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("transcript: stat %q: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}
