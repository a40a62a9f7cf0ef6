package command

// Document is a parsed slash command file: one front-matter block followed by
// one or more named bash fences.
type Document struct {
	Path        string
	FrontMatter FrontMatter
	Blocks      []Block
}

// FrontMatter holds the document metadata. Raw is the mapping exactly as it was
// decoded from YAML and is what the JSON schema sees; the typed fields are
// filled in once the schema has accepted it.
type FrontMatter struct {
	Raw map[string]any `json:"-"`

	Slash   string   `json:"slash" validate:"required,slashname"`
	Image   string   `json:"image" validate:"required"`
	Outputs []string `json:"outputs" validate:"required,dive,required,relpath"`
}

// Block is a named bash fence.
type Block struct {
	Name string
	Body string
	// Line is the 1-based line number of the opening fence.
	Line int
}

// Bodies returns the block bodies in document order.
func (d *Document) Bodies() []string {
	bodies := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		bodies = append(bodies, b.Body)
	}
	return bodies
}

// Names returns the block names in document order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		names = append(names, b.Name)
	}
	return names
}
