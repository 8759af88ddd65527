package delivery

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/metrics"
	"github.com/jwalitptl/notifier/pkg/transport"
	"github.com/jwalitptl/notifier/pkg/transport/exchange"
	"github.com/jwalitptl/notifier/pkg/transport/sms"
)

type recordingSender struct {
	err  error
	sent []transport.Message
	to   []transport.Server
}

func (r *recordingSender) Send(_ context.Context, server transport.Server, msg transport.Message) error {
	r.sent = append(r.sent, msg)
	r.to = append(r.to, server)
	return r.err
}

type countingTransport struct {
	requests int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.requests, 1)
	return nil, errors.New("unexpected request")
}

type dispatchHarness struct {
	repo     *memRepo
	systems  *memSystems
	queue    *Queue
	smtp     *recordingSender
	exchange *countingTransport
	svc      Service

	smtpID, exchangeID, smsID, faxID uuid.UUID
}

func newDispatchHarness() *dispatchHarness {
	h := &dispatchHarness{
		repo:       newMemRepo(),
		smtp:       &recordingSender{},
		exchange:   &countingTransport{},
		smtpID:     uuid.New(),
		exchangeID: uuid.New(),
		smsID:      uuid.New(),
		faxID:      uuid.New(),
	}
	h.systems = &memSystems{systems: map[uuid.UUID]*model.DeliverySystem{
		h.smtpID: {
			ID: h.smtpID, Name: "relay", SystemType: model.SystemSMTP,
			ServerAddress: "smtp.example.com", Port: 25, EmailAddress: "noreply@example.com",
			UserName: "svc", Password: "secret", BodyIsHTML: true,
		},
		h.exchangeID: {ID: h.exchangeID, Name: "ews", SystemType: model.SystemExchange, ServerAddress: "mail.example.com"},
		h.smsID:      {ID: h.smsID, Name: "sms", SystemType: model.SystemSMS},
		h.faxID:      {ID: h.faxID, Name: "fax", SystemType: "Fax"},
	}}

	registry := transport.NewRegistry()
	registry.Register(string(model.SystemSMTP), h.smtp)
	registry.Register(string(model.SystemExchange), exchange.New(exchange.WithHTTPClient(&http.Client{Transport: h.exchange})))
	registry.Register(string(model.SystemSMS), sms.New())

	m := metrics.New("test")
	h.queue = NewQueue(h.repo, m, logger.Nop())
	h.svc = NewService(h.queue, h.systems, registry, m, logger.Nop(), Options{})
	return h
}

func (h *dispatchHarness) enqueue(t *testing.T, systemID uuid.UUID, targets ...model.DeliveryTarget) *model.DeliveryItem {
	t.Helper()
	item := &model.DeliveryItem{Subject: "Overdue", Body: "<p>x</p>", DeliverySystemID: systemID, Targets: targets}
	require.NoError(t, h.queue.Enqueue(context.Background(), item))
	return item
}

func to(addr string) model.DeliveryTarget {
	return model.DeliveryTarget{Type: model.TargetTo, Address: addr}
}

func TestRunDeliversPendingItems(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.smtpID,
		to("a@example.com"),
		model.DeliveryTarget{Type: "CC", Address: "c@example.com"},
		model.DeliveryTarget{Type: model.TargetBcc, Address: "b@example.com"},
	)

	stats, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Pending: 1, Completed: 1}, stats)

	stored := h.repo.stored(item.ID)
	assert.Equal(t, model.DeliveryStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedDate)

	require.Len(t, h.smtp.sent, 1)
	msg := h.smtp.sent[0]
	assert.Equal(t, []string{"a@example.com"}, msg.To)
	assert.Equal(t, []string{"c@example.com"}, msg.Cc)
	assert.Equal(t, []string{"b@example.com"}, msg.Bcc)
	assert.True(t, msg.HTML)
	assert.Equal(t, "noreply@example.com", h.smtp.to[0].From)
	assert.Equal(t, "secret", h.smtp.to[0].Password)
}

func TestFailedSendIsRecordedAndRunContinues(t *testing.T) {
	h := newDispatchHarness()
	h.smtp.err = errors.New("550 mailbox unavailable")

	failed := h.enqueue(t, h.smtpID, to("a@example.com"))
	second := h.enqueue(t, h.smtpID, to("b@example.com"))

	stats, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)
	assert.Len(t, h.smtp.sent, 2)

	stored := h.repo.stored(failed.ID)
	assert.Equal(t, model.DeliveryStatusError, stored.Status)
	require.NotNil(t, stored.ErrorText)
	assert.Equal(t, "SMTP send failed: 550 mailbox unavailable", *stored.ErrorText)
	assert.Equal(t, model.DeliveryStatusError, h.repo.status(second.ID))
}

func TestDispatchReturnsTransportErrorAfterRecordingFailure(t *testing.T) {
	h := newDispatchHarness()
	cause := errors.New("550 mailbox unavailable")
	h.smtp.err = cause
	item := h.enqueue(t, h.smtpID, to("a@example.com"))

	err := h.svc.Dispatch(context.Background(), item)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, model.DeliveryStatusError, h.repo.status(item.ID))
}

func TestExchangeWithoutToRecipientsCompletesWithoutRequest(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.exchangeID, model.DeliveryTarget{Type: model.TargetCc, Address: "c@example.com"})

	stats, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, model.DeliveryStatusCompleted, h.repo.status(item.ID))
	assert.Zero(t, atomic.LoadInt32(&h.exchange.requests))
}

func TestSMSIsNotImplemented(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.smsID, to("+15550100"))

	_, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)

	stored := h.repo.stored(item.ID)
	assert.Equal(t, model.DeliveryStatusError, stored.Status)
	require.NotNil(t, stored.ErrorText)
	assert.Contains(t, *stored.ErrorText, "Not Implemented")
}

func TestUnknownSystemTypeFailsWithoutText(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.faxID, to("a@example.com"))

	stats, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	stored := h.repo.stored(item.ID)
	assert.Equal(t, model.DeliveryStatusError, stored.Status)
	assert.Nil(t, stored.ErrorText)
	assert.Empty(t, h.smtp.sent)
}

func TestMissingSystemFailsItem(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, uuid.New(), to("a@example.com"))

	_, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)

	stored := h.repo.stored(item.ID)
	assert.Equal(t, model.DeliveryStatusError, stored.Status)
	require.NotNil(t, stored.ErrorText)
	assert.Contains(t, *stored.ErrorText, "delivery system unavailable")
}

func TestSystemsAreLoadedOncePerRun(t *testing.T) {
	h := newDispatchHarness()
	h.enqueue(t, h.smtpID, to("a@example.com"))
	h.enqueue(t, h.smtpID, to("b@example.com"))
	h.enqueue(t, h.smtpID, to("c@example.com"))

	_, err := h.svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.systems.lookups)
}

func TestDispatchNeverRevisitsTerminalItems(t *testing.T) {
	ctx := context.Background()
	h := newDispatchHarness()
	item := h.enqueue(t, h.smtpID, to("a@example.com"))

	require.NoError(t, h.svc.Dispatch(ctx, item))
	require.Equal(t, model.DeliveryStatusCompleted, h.repo.status(item.ID))

	stale := h.repo.stored(item.ID)
	stale.Status = model.DeliveryStatusToBeProcessed
	err := h.svc.Dispatch(ctx, stale)
	require.Error(t, err)

	assert.Len(t, h.smtp.sent, 1)
	assert.Equal(t, model.DeliveryStatusCompleted, h.repo.status(item.ID))
}

// racingRepo lets another dispatcher claim every item right after it is listed.
type racingRepo struct {
	*memRepo
}

func (r racingRepo) ListByStatus(ctx context.Context, status model.DeliveryStatus) ([]*model.DeliveryItem, error) {
	items, err := r.memRepo.ListByStatus(ctx, status)
	for _, item := range items {
		r.memRepo.items[item.ID].Status = model.DeliveryStatusInProcess
	}
	return items, err
}

func TestRunSkipsItemsClaimedElsewhere(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.smtpID, to("a@example.com"))

	m := metrics.New("test")
	registry := transport.NewRegistry()
	registry.Register(string(model.SystemSMTP), h.smtp)
	svc := NewService(NewQueue(racingRepo{h.repo}, m, logger.Nop()), h.systems, registry, m, logger.Nop(), Options{})

	stats, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Pending: 1, Skipped: 1}, stats)
	assert.Empty(t, h.smtp.sent)
	assert.Equal(t, model.DeliveryStatusInProcess, h.repo.status(item.ID))
}

func TestRunHonorsInterruptBeforeSending(t *testing.T) {
	h := newDispatchHarness()
	item := h.enqueue(t, h.smtpID, to("a@example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := h.svc.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, stats.Interrupted)
	assert.Equal(t, model.DeliveryStatusToBeProcessed, h.repo.status(item.ID))
	assert.Empty(t, h.smtp.sent)
}
