package notification

import (
	"strings"

	"github.com/jwalitptl/notifier/internal/model"
)

// Target is the resolved recipient of one or more records.
type Target struct {
	// Key decides whether adjacent records share a message.
	Key       string
	Name      string
	Addresses []string
}

// TargetGroup is a run of adjacent records with the same target key.
type TargetGroup struct {
	Target
	Body  string
	Count int
	// First is the record that opened the group.
	First model.Record
}

// KeyFunc resolves the target of a record.
type KeyFunc func(model.Record) (Target, error)

// Grouper walks records once and emits a group each time the target key
// changes. Grouping is by adjacency only: [A A B A] yields three groups.
//
//	g := NewGrouper(records, keyOf, render)
//	for g.Next() {
//		group := g.Group()
//	}
//	if err := g.Err(); err != nil { ... }
type Grouper struct {
	records []model.Record
	keyOf   KeyFunc
	render  func(model.Record) string

	pos     int
	open    *groupBuilder
	current TargetGroup
	err     error
}

type groupBuilder struct {
	group TargetGroup
	body  strings.Builder
}

func (b *groupBuilder) add(fragment string) {
	b.body.WriteString(fragment)
	b.group.Count++
}

func (b *groupBuilder) seal() TargetGroup {
	g := b.group
	g.Body = b.body.String()
	return g
}

func NewGrouper(records []model.Record, keyOf KeyFunc, render func(model.Record) string) *Grouper {
	return &Grouper{records: records, keyOf: keyOf, render: render}
}

// Next advances to the next sealed group. It returns false when the input is
// exhausted or a key could not be resolved; check Err afterwards.
func (g *Grouper) Next() bool {
	if g.err != nil {
		return false
	}

	for g.pos < len(g.records) {
		rec := g.records[g.pos]
		target, err := g.keyOf(rec)
		if err != nil {
			g.err = err
			g.open = nil
			return false
		}
		g.pos++

		if g.open != nil && g.open.group.Key == target.Key {
			g.open.add(g.render(rec))
			continue
		}

		sealed := g.open
		g.open = &groupBuilder{group: TargetGroup{Target: target, First: rec}}
		g.open.add(g.render(rec))
		if sealed != nil {
			g.current = sealed.seal()
			return true
		}
	}

	if g.open != nil {
		g.current = g.open.seal()
		g.open = nil
		return true
	}
	return false
}

// Group returns the group produced by the last successful call to Next.
func (g *Grouper) Group() TargetGroup {
	return g.current
}

func (g *Grouper) Err() error {
	return g.err
}
