package content

// StreamContent is the renderable view of one response.
type StreamContent struct {
	Items    []Item
	Finished bool
	Errors   []ItemError
}

// Item is one renderable unit. ID is the diffing key and never changes for
// the lifetime of the item.
type Item struct {
	ID    string
	Value Value
}

// ItemError records a failure attached to an item or to the response.
type ItemError struct {
	ID  string
	Err error
}

// Value is the closed set of item kinds. Renderers switch over the concrete
// types; new kinds are added here and nowhere else.
type Value interface {
	isValue()
}

// Markdown is a block of markdown text. A non-empty Collapsed holds the
// shortened text shown when the user collapses the entry.
type Markdown struct {
	Content   string
	Collapsed string
}

func (Markdown) isValue() {}

// Collapsible reports whether the entry has a collapsed form.
func (m Markdown) Collapsible() bool {
	return m.Collapsed != ""
}

// Finish returns a copy of c marked as finished.
func (c StreamContent) Finish() StreamContent {
	c.Finished = true
	return c
}

// Text concatenates the content of every markdown item in order.
func (c StreamContent) Text() string {
	var out string
	for _, item := range c.Items {
		switch v := item.Value.(type) {
		case Markdown:
			out += v.Content
		}
	}
	return out
}
