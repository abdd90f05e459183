package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/port/ledger"
	"github.com/Strob0t/painradar/internal/port/messagequeue"
	"github.com/Strob0t/painradar/internal/port/source"
)

// mockLedger implements ledger.Ledger for testing.
type mockLedger struct {
	mu        sync.Mutex
	recorded  []*aggregate.Query
	recordErr error
}

func (m *mockLedger) Record(_ context.Context, q *aggregate.Query) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return "", m.recordErr
	}
	m.recorded = append(m.recorded, q)
	return "q-1", nil
}

func (m *mockLedger) Get(_ context.Context, id string) (*aggregate.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.recorded {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLedger) List(_ context.Context, limit int) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ledger.Entry{}
	for _, q := range m.recorded {
		out = append(out, ledger.Entry{ID: q.ID, Keyword: q.Keyword, Mode: q.Mode})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type published struct {
	subject string
	data    []byte
}

// mockPublisher implements messagequeue.Publisher for testing.
type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{subject: subject, data: data})
	return nil
}

func newTestQueryService(l ledger.Ledger, pub messagequeue.Publisher) (*QueryService, *fakeSource) {
	good := &fakeSource{name: "good", items: items("a")}
	bad := &fakeSource{name: "bad", err: errBackend}
	agg := NewAggregateService([]source.Source{good, bad}, &stubSummarizer{text: "s"}, testAggConfig())
	return NewQueryService(agg, l, pub), good
}

func TestQueryService_RunRecordsAndPublishes(t *testing.T) {
	l := &mockLedger{}
	pub := &mockPublisher{}
	svc, _ := newTestQueryService(l, pub)

	q, err := svc.Run(context.Background(), "crm", mode.Opportunities)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q.ID != "q-1" || len(l.recorded) != 1 {
		t.Fatalf("expected recorded query with id, got %q (%d recorded)", q.ID, len(l.recorded))
	}

	if len(pub.msgs) != 1 || pub.msgs[0].subject != messagequeue.SubjectQueryRecorded {
		t.Fatalf("expected one queries.recorded message, got %+v", pub.msgs)
	}
	var p messagequeue.QueryRecordedPayload
	if err := json.Unmarshal(pub.msgs[0].data, &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "q-1" || p.Mode != "opportunities" || len(p.SourcesFailed) != 1 || p.SourcesFailed[0] != "bad" {
		t.Fatalf("unexpected payload %+v", p)
	}

	got, err := svc.Get(context.Background(), "q-1")
	if err != nil || got.Keyword != "crm" {
		t.Fatalf("Get: %v %+v", err, got)
	}
}

func TestQueryService_LedgerFailureStillReturnsQuery(t *testing.T) {
	l := &mockLedger{recordErr: errors.New("disk full")}
	pub := &mockPublisher{}
	svc, _ := newTestQueryService(l, pub)

	q, err := svc.Run(context.Background(), "crm", mode.Default)
	if err != nil {
		t.Fatalf("ledger failure must not fail Run: %v", err)
	}
	if q.ID != "" {
		t.Fatalf("expected empty ID, got %q", q.ID)
	}
	if len(pub.msgs) != 0 {
		t.Fatal("unrecorded queries must not be announced")
	}
}

func TestQueryService_PublishFailureIgnored(t *testing.T) {
	svc, _ := newTestQueryService(&mockLedger{}, &mockPublisher{err: errors.New("nats down")})
	if _, err := svc.Run(context.Background(), "crm", mode.Default); err != nil {
		t.Fatalf("publish failure must not fail Run: %v", err)
	}
}

func TestQueryService_NoLedger(t *testing.T) {
	svc, _ := newTestQueryService(nil, nil)
	if _, err := svc.Run(context.Background(), "crm", mode.Default); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	entries, err := svc.List(context.Background(), 0)
	if err != nil || entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty list, got %v %v", entries, err)
	}
}

func TestQueryService_HandleRequested(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantRuns int32
	}{
		{"valid", `{"keyword":"crm","mode":"competitors"}`, 1},
		{"default mode", `{"keyword":"crm"}`, 1},
		{"unknown mode dropped", `{"keyword":"crm","mode":"poetry"}`, 0},
		{"blank keyword dropped", `{"keyword":"  "}`, 0},
		{"malformed dropped", `{`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &mockLedger{}
			svc, good := newTestQueryService(l, nil)

			err := svc.HandleRequested(context.Background(), messagequeue.SubjectQueryRequested, []byte(tt.payload))
			if err != nil {
				t.Fatalf("HandleRequested: %v", err)
			}
			if got := good.calls.Load(); got != tt.wantRuns {
				t.Fatalf("source calls = %d, want %d", got, tt.wantRuns)
			}
			if int32(len(l.recorded)) != tt.wantRuns {
				t.Fatalf("recorded = %d, want %d", len(l.recorded), tt.wantRuns)
			}
		})
	}
}
