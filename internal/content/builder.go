package content

const rootPrefix = "stream."

// Builder rebuilds StreamContent from a full text buffer. Build one per
// update; a Builder never carries text between requests.
type Builder struct {
	text string
	ids  *IDGenerator
}

// NewBuilder returns a builder over text.
func NewBuilder(text string) *Builder {
	return &Builder{text: text, ids: NewIDGenerator(rootPrefix)}
}

// Build wraps the whole buffer in a single markdown item. The buffer is
// reprocessed in full on every call.
func (b *Builder) Build() StreamContent {
	var c StreamContent
	if b.text == "" {
		return c
	}
	c.Items = append(c.Items, Item{
		ID:    b.ids.Next(),
		Value: Markdown{Content: b.text},
	})
	return c
}
