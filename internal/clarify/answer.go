package clarify

// Answer is the structured outcome of a clarification. It is sealed: the
// only implementations are the variant types in this package.
type Answer interface {
	answer()
}

// ProjectAnswer is an [Answer] to a [KindNewProject] request.
type ProjectAnswer interface {
	Answer
	projectAnswer()
}

// PersonAnswer is an [Answer] to a [KindNewPerson] request.
type PersonAnswer interface {
	Answer
	personAnswer()
}

// NewProject describes a project the user wants created.
type NewProject struct {
	Name string

	// Destination is optional. Empty means the global default applies and
	// nothing is written to the project's routing.
	Destination string

	Description string
}

// ProjectCreate creates a new project for the unknown term.
type ProjectCreate struct {
	Project NewProject
}

// ProjectLinkTerm records the unknown word as a misheard variant of an
// existing term.
type ProjectLinkTerm struct {
	// TermName is matched case-insensitively against existing term names.
	TermName string

	// Alias is the variant to add. Empty means the queried word itself.
	Alias string
}

// ProjectLinkExisting records the unknown word as a phrase of an existing
// project.
type ProjectLinkExisting struct {
	// ProjectIndex indexes [Request.Options]. Nil or out-of-range values
	// make the answer a no-op.
	ProjectIndex *int

	// Description is appended to the project's notes when non-empty.
	Description string
}

// ProjectDefineTerm creates a term entity for the unknown word.
type ProjectDefineTerm struct {
	// Name defaults to the queried word.
	Name      string
	Expansion string
	Notes     string

	// ProjectIndices index [Request.Options].
	ProjectIndices []int

	// NewProject, when set, is created first and associated with the term.
	NewProject *NewProject
}

// ProjectIgnore puts the word on the ignore list.
type ProjectIgnore struct {
	// Term defaults to the queried word.
	Term string
}

// ProjectSkip leaves the context store untouched.
type ProjectSkip struct{}

// PersonCreate creates a person for the unknown name.
type PersonCreate struct {
	// Name is the canonical name. Empty falls back to [Response.Text], then
	// the queried name.
	Name    string
	Role    string
	Company string

	// ProjectIndex indexes [Request.Options]. Nil links no project.
	ProjectIndex *int

	// NewProject, when set, is created first and becomes the linked project.
	NewProject *NewProject
}

// Choice returns a pointer to i, for the ProjectIndex fields.
func Choice(i int) *int { return &i }

// PersonSkip leaves the context store untouched.
type PersonSkip struct{}

func (ProjectCreate) answer()       {}
func (ProjectLinkTerm) answer()     {}
func (ProjectLinkExisting) answer() {}
func (ProjectDefineTerm) answer()   {}
func (ProjectIgnore) answer()       {}
func (ProjectSkip) answer()         {}
func (PersonCreate) answer()        {}
func (PersonSkip) answer()          {}

func (ProjectCreate) projectAnswer()       {}
func (ProjectLinkTerm) projectAnswer()     {}
func (ProjectLinkExisting) projectAnswer() {}
func (ProjectDefineTerm) projectAnswer()   {}
func (ProjectIgnore) projectAnswer()       {}
func (ProjectSkip) projectAnswer()         {}

func (PersonCreate) personAnswer() {}
func (PersonSkip) personAnswer()   {}
