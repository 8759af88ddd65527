package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
)

func TestRenderBody(t *testing.T) {
	rec := model.Record{
		"subject":  "Printer on fire",
		"DueDate":  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		"Priority": 2,
		"Owner":    nil,
	}

	r := RenderBody("<p><%Subject%> due <%DueDate%> (P<%Priority%>) <%Owner%><%Missing%> <%:NOW%></p>", rec)

	assert.Equal(t, "<p>Printer on fire due 2024-03-04 09:00:00 (P2) <%Owner%><%Missing%> <%:NOW%></p>", r.Text)
	require.Len(t, r.Misses, 2)
	assert.Equal(t, "<%Owner%>", r.Misses[0].Token)
	assert.ErrorIs(t, r.Misses[0].Err, ErrNullValue)
	assert.Equal(t, "<%Missing%>", r.Misses[1].Token)
	assert.ErrorIs(t, r.Misses[1].Err, model.ErrFieldMissing)
}

func TestRenderBodyRepeatsTokens(t *testing.T) {
	r := RenderBody("<%Name%>/<%Name%>", model.Record{"Name": "x"})
	assert.Equal(t, "x/x", r.Text)
	assert.Empty(t, r.Misses)
}

func TestRenderSubject(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	tmpl := "<%:ITEMCOUNT%> <%:ENTITY%> <%:ISARE%> overdue and <%:HASHAVE%> no owner for <%:NAME%> on <%:TODAY%> (<%:NOW%>)"

	plural := RenderSubject(tmpl, nil, SubjectData{ItemCount: 3, Name: "Support", Entity: "Ticket", Now: now})
	assert.Equal(t, "3 Tickets are overdue and have no owner for Support on 2024-03-04 (2024-03-04 09:15)", plural.Text)
	assert.Empty(t, plural.Misses)

	single := RenderSubject(tmpl, nil, SubjectData{ItemCount: 1, Entity: "Address", Now: now})
	assert.Equal(t, "1 Address is overdue and has no owner for  on 2024-03-04 (2024-03-04 09:15)", single.Text)
}

func TestRenderSubjectIsBestEffort(t *testing.T) {
	r := RenderSubject("<%:BOGUS%> <%Account%> <%:ITEMCOUNT%> <%Unclosed", model.Record{"Account": "Acme"}, SubjectData{ItemCount: 2})
	assert.Equal(t, "<%:BOGUS%> Acme 2 <%Unclosed", r.Text)
	require.Len(t, r.Misses, 1)
	assert.ErrorIs(t, r.Misses[0].Err, ErrUnknownToken)
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "Ticket", Pluralize("Ticket", 1))
	assert.Equal(t, "Tickets", Pluralize("Ticket", 2))
	assert.Equal(t, "Addresses", Pluralize("Address", 2))
	assert.Equal(t, "Opportunity", Pluralize("Opportunity", 0))
}
