// Package events announces completed relay runs on the message bus.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/userrelay/common/messaging"
	"github.com/telhawk-systems/userrelay/common/middleware"
	"github.com/telhawk-systems/userrelay/internal/metrics"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
)

// Publisher is a relay.Observer that publishes a RunRecord per run.
type Publisher struct {
	pub    messaging.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(pub messaging.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, logger: logger, now: time.Now}
}

func (p *Publisher) ObserveStage(relay.Operation, relay.Stage, time.Duration, error) {}

// ObserveResult publishes on relay.<operation>.completed. Failures are
// logged and counted; they never affect the run.
func (p *Publisher) ObserveResult(ctx context.Context, res relay.Result) {
	requestID := middleware.GetRequestID(ctx)
	rec := models.NewRunRecord(uuid.NewString(), requestID, res, p.now())

	data, err := json.Marshal(rec)
	if err != nil {
		p.fail(ctx, res, err)
		return
	}

	outcome := "success"
	if !res.Success {
		outcome = string(res.Kind)
	}
	opts := []messaging.PublishOption{messaging.WithHeader(messaging.HeaderOutcome, outcome)}
	if requestID != "" {
		opts = append(opts, messaging.WithHeader(messaging.HeaderRequestID, requestID))
	}

	// The run is over; a client disconnect must not drop the event.
	if err := p.pub.Publish(context.WithoutCancel(ctx), messaging.RelaySubject(string(res.Operation)), data, opts...); err != nil {
		p.fail(ctx, res, err)
	}
}

func (p *Publisher) fail(ctx context.Context, res relay.Result, err error) {
	metrics.EventPublishFailures.Inc()
	p.logger.WarnContext(ctx, "failed to publish relay event",
		slog.String("operation", string(res.Operation)),
		slog.String("error", err.Error()),
	)
}
