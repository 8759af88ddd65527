package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/messaging"
)

// ProgressChannel is where progress updates are published.
const ProgressChannel = "notifier.progress"

// Progress receives advisory phase and percentage updates from a job run.
// Implementations must not block the run.
type Progress interface {
	SetPhase(phase string)
	SetProgress(percent float64)
}

type nopProgress struct{}

func (nopProgress) SetPhase(string)     {}
func (nopProgress) SetProgress(float64) {}

// NopProgress discards all updates.
var NopProgress Progress = nopProgress{}

// ProgressUpdate is the payload published for every change.
type ProgressUpdate struct {
	Job     string    `json:"job"`
	RunID   string    `json:"run_id"`
	Phase   string    `json:"phase"`
	Percent float64   `json:"percent"`
	At      time.Time `json:"at"`
}

// brokerProgress publishes updates to a messaging broker. Publish failures are
// logged and otherwise ignored.
type brokerProgress struct {
	ctx    context.Context
	broker messaging.Broker
	logger *logger.Logger

	mu     sync.Mutex
	update ProgressUpdate
}

func NewBrokerProgress(ctx context.Context, broker messaging.Broker, log *logger.Logger, job, runID string) Progress {
	return &brokerProgress{
		ctx:    context.WithoutCancel(ctx),
		broker: broker,
		logger: log,
		update: ProgressUpdate{Job: job, RunID: runID},
	}
}

func (p *brokerProgress) SetPhase(phase string) {
	p.mu.Lock()
	p.update.Phase = phase
	p.update.Percent = 0
	u := p.update
	p.mu.Unlock()
	p.publish(u)
}

func (p *brokerProgress) SetProgress(percent float64) {
	p.mu.Lock()
	p.update.Percent = percent
	u := p.update
	p.mu.Unlock()
	p.publish(u)
}

func (p *brokerProgress) publish(u ProgressUpdate) {
	u.At = time.Now().UTC()
	if err := p.broker.Publish(p.ctx, ProgressChannel, messaging.Message{Type: "job.progress", Payload: u}); err != nil {
		p.logger.Debug("progress update dropped", "job", u.Job, "error", err.Error())
	}
}
