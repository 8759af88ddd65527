package notification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
)

func ownerKey(rec model.Record) (Target, error) {
	owner, ok := rec["owner"].(string)
	if !ok {
		return Target{}, errors.New("no owner")
	}
	return Target{Key: owner, Name: owner, Addresses: []string{owner + "@example.com"}}, nil
}

func renderN(rec model.Record) string {
	return "[" + rec["n"].(string) + "]"
}

func collect(t *testing.T, g *Grouper) []TargetGroup {
	t.Helper()
	var groups []TargetGroup
	for g.Next() {
		groups = append(groups, g.Group())
	}
	return groups
}

func TestGrouperIsAdjacencyBased(t *testing.T) {
	records := []model.Record{
		{"owner": "a", "n": "1"},
		{"owner": "a", "n": "2"},
		{"owner": "b", "n": "3"},
		{"owner": "a", "n": "4"},
	}

	g := NewGrouper(records, ownerKey, renderN)
	groups := collect(t, g)
	require.NoError(t, g.Err())
	require.Len(t, groups, 3)

	assert.Equal(t, "a", groups[0].Key)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "[1][2]", groups[0].Body)
	assert.Equal(t, []string{"a@example.com"}, groups[0].Addresses)
	assert.Equal(t, "1", groups[0].First["n"])

	assert.Equal(t, "b", groups[1].Key)
	assert.Equal(t, "[3]", groups[1].Body)

	assert.Equal(t, "a", groups[2].Key)
	assert.Equal(t, 1, groups[2].Count)
	assert.Equal(t, "[4]", groups[2].Body)

	assert.False(t, g.Next(), "grouper is not restartable")
}

func TestGrouperEmptyInput(t *testing.T) {
	g := NewGrouper(nil, ownerKey, renderN)
	assert.False(t, g.Next())
	assert.NoError(t, g.Err())
}

func TestGrouperStopsOnKeyError(t *testing.T) {
	records := []model.Record{
		{"owner": "a", "n": "1"},
		{"owner": "b", "n": "2"},
		{"n": "3"},
	}

	g := NewGrouper(records, ownerKey, renderN)
	groups := collect(t, g)
	assert.Len(t, groups, 1)
	assert.EqualError(t, g.Err(), "no owner")
}
