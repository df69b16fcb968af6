// Package worker provides async scoring-run processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kite/internal/domain"
	"github.com/opensource-finance/kite/internal/score"
)

// Worker processes scoring requests asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	scorer *score.Scorer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, scorer *score.Scorer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		scorer: scorer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAnalysisRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg.TenantID, msg)
}

// AnalysisRequest is the message payload for an async scoring run.
// Criteria may be omitted, in which case the tenant's stored criteria
// are used.
type AnalysisRequest struct {
	RequestID string               `json:"requestId,omitempty"`
	TenantID  string               `json:"tenantId,omitempty"`
	TraceID   string               `json:"traceId,omitempty"`
	Criteria  []*domain.Criterion  `json:"criteria,omitempty"`
	Cases     []*domain.CaseRecord `json:"cases"`
}

// processRequest runs a scoring batch end to end.
func (w *Worker) processRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req AnalysisRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing analysis request",
		"request_id", req.RequestID,
		"tenant_id", tenantID,
		"trace_id", traceID,
		"case_count", len(req.Cases),
	)

	criteria := req.Criteria
	if len(criteria) == 0 && w.repo != nil {
		stored, err := w.repo.ListCriteria(ctx, tenantID)
		if err != nil {
			slog.Error("failed to load stored criteria",
				"request_id", req.RequestID,
				"tenant_id", tenantID,
				"error", err,
			)
			return err
		}
		criteria = stored
	}

	if err := score.ValidateInput(criteria, req.Cases); err != nil {
		slog.Error("invalid analysis request",
			"request_id", req.RequestID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	analysis := w.scorer.Run(ctx, tenantID, criteria, req.Cases)

	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(analysis)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}

	// Surface ineligible cases on the alert topic for downstream review.
	for _, result := range analysis.Results {
		if result.EligibilityStatus != domain.EligibilityNotEligible {
			continue
		}
		alertPayload, _ := json.Marshal(result)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicCaseAlert, alertPayload); err != nil {
			slog.Error("failed to publish case alert",
				"analysis_id", analysis.ID,
				"case_id", result.CaseID,
				"error", err,
			)
		}
	}

	slog.Info("analysis request processed",
		"analysis_id", analysis.ID,
		"tenant_id", tenantID,
		"total_cases", analysis.Summary.TotalCases,
		"eligible_cases", analysis.Summary.EligibleCases,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
