package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kite/internal/bus"
	"github.com/opensource-finance/kite/internal/domain"
	"github.com/opensource-finance/kite/internal/score"
)

func testCriteria() []*domain.Criterion {
	return []*domain.Criterion{
		{
			ID:         "crit-001",
			MetricName: "Revenue",
			Weight:     20,
			Intervals: []domain.IntervalRule{
				{Interval: "1000+", Score: 10},
				{Interval: "500-999", Score: 6},
				{Interval: "0-499", Score: 2},
			},
			Enabled: true,
		},
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	scorer, err := score.New()
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}

	worker := NewWorker(eventBus, nil, scorer)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessRequest", func(t *testing.T) {
		w := NewWorker(eventBus, nil, scorer)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track completed analyses
		var completedReceived atomic.Bool
		var completedPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			completedPayload = msg.Payload
			completedReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := AnalysisRequest{
			RequestID: "req-001",
			TenantID:  "tenant-test",
			TraceID:   "trace-001",
			Criteria:  testCriteria(),
			Cases: []*domain.CaseRecord{
				{CaseID: "case-001", CaseName: "Acme Traders", Metrics: map[string]any{"revenue": 1500}},
			},
		}

		payload, _ := json.Marshal(req)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicAnalysisRequested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !completedReceived.Load() {
			t.Error("expected completed analysis to be published")
		}

		if completedPayload != nil {
			var analysis domain.Analysis
			if err := json.Unmarshal(completedPayload, &analysis); err != nil {
				t.Fatalf("failed to parse analysis: %v", err)
			}

			if analysis.TenantID != "tenant-test" {
				t.Errorf("expected tenantID 'tenant-test', got '%s'", analysis.TenantID)
			}
			if len(analysis.Results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(analysis.Results))
			}
			if analysis.Results[0].EligibilityStatus != domain.EligibilityEligible {
				t.Errorf("expected %s, got %s", domain.EligibilityEligible, analysis.Results[0].EligibilityStatus)
			}
		}
	})

	t.Run("AlertPublishedForIneligibleCase", func(t *testing.T) {
		w := NewWorker(eventBus, nil, scorer)

		cfg := Config{
			TenantIDs: []string{"tenant-alert"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track alerts
		var alertReceived atomic.Bool
		var alertPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicCaseAlert, func(ctx context.Context, msg *domain.Message) error {
			alertPayload = msg.Payload
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Low revenue lands below the eligibility cutoff.
		req := AnalysisRequest{
			RequestID: "req-alert",
			TenantID:  "tenant-alert",
			Criteria:  testCriteria(),
			Cases: []*domain.CaseRecord{
				{CaseID: "case-reject", Metrics: map[string]any{"revenue": 50}},
			},
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-alert", domain.TopicAnalysisRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert to be published for ineligible case")
		}

		if alertPayload != nil {
			var result domain.CaseResult
			if err := json.Unmarshal(alertPayload, &result); err != nil {
				t.Fatalf("failed to parse alert: %v", err)
			}
			if result.CaseID != "case-reject" {
				t.Errorf("expected caseID 'case-reject', got '%s'", result.CaseID)
			}
		}
	})

	t.Run("InvalidRequestIsDropped", func(t *testing.T) {
		w := NewWorker(eventBus, nil, scorer)

		cfg := Config{
			TenantIDs: []string{"tenant-invalid"},
		}
		w.Start(cfg)
		defer w.Stop()

		var completedReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-invalid", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			completedReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// No criteria and no stored fallback: the run is rejected.
		req := AnalysisRequest{
			RequestID: "req-invalid",
			TenantID:  "tenant-invalid",
			Cases: []*domain.CaseRecord{
				{CaseID: "case-001", Metrics: map[string]any{"revenue": 100}},
			},
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-invalid", domain.TopicAnalysisRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if completedReceived.Load() {
			t.Error("expected no completed analysis for invalid request")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, nil, scorer)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestAnalysisRequestParsing(t *testing.T) {
	req := AnalysisRequest{
		RequestID: "req-123",
		TenantID:  "tenant-001",
		TraceID:   "trace-456",
		Criteria:  testCriteria(),
		Cases: []*domain.CaseRecord{
			{CaseID: "case-001", CaseName: "Acme Traders", Metrics: map[string]any{"revenue": 750, "rating": "AA"}},
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed AnalysisRequest
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.RequestID != req.RequestID {
		t.Errorf("expected RequestID '%s', got '%s'", req.RequestID, parsed.RequestID)
	}
	if len(parsed.Criteria) != 1 || parsed.Criteria[0].MetricName != "Revenue" {
		t.Errorf("unexpected criteria: %+v", parsed.Criteria)
	}
	if len(parsed.Cases) != 1 || parsed.Cases[0].Metrics["rating"] != "AA" {
		t.Errorf("unexpected cases: %+v", parsed.Cases)
	}
}
