package clarify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// AnswersFile is the on-disk format read by [FileHandler].
//
// Example:
//
//	answers:
//	  - term: Jon Smth
//	    response: Jon Smith
//	    action: create
//	    project: Phoenix
//	  - term: fenix
//	    kind: new_project
//	    action: link
//	    link_project: Phoenix
//	  - term: umm
//	    action: ignore
type AnswersFile struct {
	Answers []RecordedAnswer `yaml:"answers"`
}

// RecordedAnswer is one entry of an [AnswersFile]. Which fields apply
// depends on Action and on the kind of the request being answered. Project
// references (project, link_project, projects) are names matched against
// the request's options.
type RecordedAnswer struct {
	Term string `yaml:"term"`

	// Kind restricts the entry to one request kind. Empty matches any.
	Kind Kind `yaml:"kind,omitempty"`

	Response string `yaml:"response,omitempty"`

	// Action is one of create, link, term, ignore, skip. Empty means the
	// entry only carries a Response.
	Action string `yaml:"action,omitempty"`

	// create (project or person)
	Name        string `yaml:"name,omitempty"`
	Destination string `yaml:"destination,omitempty"`
	Description string `yaml:"description,omitempty"`
	Role        string `yaml:"role,omitempty"`
	Company     string `yaml:"company,omitempty"`
	Project     string `yaml:"project,omitempty"`

	// link
	LinkTerm    string `yaml:"link_term,omitempty"`
	Alias       string `yaml:"alias,omitempty"`
	LinkProject string `yaml:"link_project,omitempty"`

	// term
	Expansion string   `yaml:"expansion,omitempty"`
	Notes     string   `yaml:"notes,omitempty"`
	Projects  []string `yaml:"projects,omitempty"`

	// NewProject nests a project creation under term or person create.
	NewProject *RecordedProject `yaml:"new_project,omitempty"`
}

// RecordedProject is a nested project creation inside a [RecordedAnswer].
type RecordedProject struct {
	Name        string `yaml:"name"`
	Destination string `yaml:"destination,omitempty"`
	Description string `yaml:"description,omitempty"`
}

var validActions = map[string]bool{"": true, "create": true, "link": true, "term": true, "ignore": true, "skip": true}

// LoadAnswers reads an [AnswersFile] from path on fs.
func LoadAnswers(fs afero.Fs, path string) (*AnswersFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clarify: open answers %q: %w", path, err)
	}
	defer f.Close()

	af, err := LoadAnswersFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("clarify: parse answers %q: %w", path, err)
	}
	return af, nil
}

// LoadAnswersFromReader decodes and validates an [AnswersFile].
func LoadAnswersFromReader(r io.Reader) (*AnswersFile, error) {
	var af AnswersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&af); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("clarify: decode answers: %w", err)
	}

	var errs []error
	for i, a := range af.Answers {
		if strings.TrimSpace(a.Term) == "" {
			errs = append(errs, fmt.Errorf("answers[%d]: term must not be empty", i))
		}
		if !validActions[a.Action] {
			errs = append(errs, fmt.Errorf("answers[%d]: unknown action %q", i, a.Action))
		}
		switch a.Kind {
		case "", KindNewPerson, KindNewProject, KindSpelling:
		default:
			errs = append(errs, fmt.Errorf("answers[%d]: unknown kind %q", i, a.Kind))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &af, nil
}

// FileHandler answers clarifications from pre-recorded entries. Requests
// without a matching entry get a zero [Response]. It is read-only after
// construction and safe for concurrent use.
type FileHandler struct {
	answers []RecordedAnswer
}

var _ Handler = (*FileHandler)(nil)

// NewFileHandler returns a handler over af. A nil af answers nothing.
func NewFileHandler(af *AnswersFile) *FileHandler {
	h := &FileHandler{}
	if af != nil {
		h.answers = af.Answers
	}
	return h
}

// HandleClarification implements [Handler]. The first entry whose term
// matches case-insensitively and whose kind is empty or equal wins.
func (h *FileHandler) HandleClarification(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	for _, a := range h.answers {
		if !strings.EqualFold(strings.TrimSpace(a.Term), strings.TrimSpace(req.Term)) {
			continue
		}
		if a.Kind != "" && a.Kind != req.Kind {
			continue
		}
		return Response{Text: a.Response, Answer: a.answerFor(req)}, nil
	}
	return Response{}, nil
}

// answerFor converts the loosely typed entry into the variant matching the
// request kind. Entries that make no sense for the kind yield nil.
func (a RecordedAnswer) answerFor(req Request) Answer {
	switch req.Kind {
	case KindNewProject:
		switch a.Action {
		case "create":
			name := a.Name
			if name == "" {
				name = req.Term
			}
			return ProjectCreate{Project: NewProject{Name: name, Destination: a.Destination, Description: a.Description}}
		case "link":
			if a.LinkTerm != "" {
				return ProjectLinkTerm{TermName: a.LinkTerm, Alias: a.Alias}
			}
			return ProjectLinkExisting{ProjectIndex: optionIndex(req.Options, a.LinkProject), Description: a.Description}
		case "term":
			t := ProjectDefineTerm{Name: a.Name, Expansion: a.Expansion, Notes: a.Notes, NewProject: a.NewProject.toNewProject()}
			for _, p := range a.Projects {
				if i := optionIndex(req.Options, p); i != nil {
					t.ProjectIndices = append(t.ProjectIndices, *i)
				}
			}
			return t
		case "ignore":
			return ProjectIgnore{Term: a.Name}
		case "skip":
			return ProjectSkip{}
		}
	case KindNewPerson:
		switch a.Action {
		case "create":
			return PersonCreate{
				Name:         a.Name,
				Role:         a.Role,
				Company:      a.Company,
				ProjectIndex: optionIndex(req.Options, a.Project),
				NewProject:   a.NewProject.toNewProject(),
			}
		case "skip":
			return PersonSkip{}
		}
	}
	return nil
}

func (p *RecordedProject) toNewProject() *NewProject {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil
	}
	return &NewProject{Name: p.Name, Destination: p.Destination, Description: p.Description}
}

// optionIndex returns the index of name in options, or nil.
func optionIndex(options []string, name string) *int {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i, o := range options {
		if strings.EqualFold(o, name) {
			return Choice(i)
		}
	}
	return nil
}
