// Package content turns a growing response buffer into an ordered list of
// renderable items keyed by stable IDs.
package content

import "strconv"

// IDGenerator hands out IDs unique within one build pass. It is not safe
// for concurrent use.
type IDGenerator struct {
	prefix  string
	counter int
	nested  int
}

// NewIDGenerator returns a generator whose IDs all start with prefix.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns a fresh ID and advances the counter.
func (g *IDGenerator) Next() string {
	id := g.prefix + strconv.Itoa(g.counter)
	g.counter++
	return id
}

// Nested spawns a child generator scoped under the parent's current
// counter. Child IDs look like "<prefix><counter>-<seq>.<n>", so they can
// never equal a bare "<prefix><n>" from the parent.
func (g *IDGenerator) Nested() *IDGenerator {
	child := &IDGenerator{
		prefix: g.prefix + strconv.Itoa(g.counter) + "-" + strconv.Itoa(g.nested) + ".",
	}
	g.nested++
	return child
}

// Prefix returns the prefix every ID from g starts with.
func (g *IDGenerator) Prefix() string {
	return g.prefix
}
