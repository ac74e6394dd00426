package execution

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codesync-backend/internal/dto"
	dispatch "codesync-backend/internal/execution"
	"codesync-backend/internal/model"
)

type memoryRepository struct {
	mu    sync.Mutex
	items map[string]model.ExecutionItem
	err   error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{items: make(map[string]model.ExecutionItem)}
}

func (m *memoryRepository) RecordExecution(ctx context.Context, item model.ExecutionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[item.ExecutionID] = item
	return nil
}

func (m *memoryRepository) GetExecution(ctx context.Context, executionID string) (model.ExecutionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[executionID]
	if !ok {
		return model.ExecutionItem{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepository) ListExecutionsByMonth(ctx context.Context, month string) ([]model.ExecutionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExecutionItem
	for _, item := range m.items {
		if item.Month == month {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryRepository) only(t *testing.T) model.ExecutionItem {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", len(m.items))
	}
	for _, item := range m.items {
		return item
	}
	return model.ExecutionItem{}
}

type stubDispatcher struct {
	res *dto.ExecuteResponse
	err error
}

func (d *stubDispatcher) Execute(ctx context.Context, req dispatch.Request) (*dto.ExecuteResponse, dispatch.Route, error) {
	if req.Language == "cobol" {
		return nil, dispatch.Route{}, dispatch.ErrUnsupportedLanguage
	}
	route := dispatch.Route{Language: req.Language, Backend: dispatch.BackendPiston, Version: "*"}
	return d.res, route, d.err
}

func (d *stubDispatcher) Languages() []dispatch.Route {
	return []dispatch.Route{{Language: "python", Backend: dispatch.BackendPiston, Version: "*"}}
}

type published struct {
	roomID string
	event  string
	body   []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, roomID, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	body, _ := json.Marshal(payload)
	p.sent = append(p.sent, published{roomID: roomID, event: event, body: body})
	return p.err
}

func okResult() *dto.ExecuteResponse {
	code := 0
	return &dto.ExecuteResponse{Language: "python", Version: "3.10.0", Run: dto.ExecutionStage{Stdout: "1\n", Output: "1\n", Code: &code}}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return t }
}

func assertCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if svcErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, svcErr.Code)
	}
	return svcErr
}

func TestExecuteRecordsAndPublishes(t *testing.T) {
	repo := newMemoryRepository()
	pub := &recordingPublisher{}
	svc := NewWithRepository(&stubDispatcher{res: okResult()}, repo, pub, fixedClock())

	res, err := svc.Execute(context.Background(), ExecuteParams{Language: "python", Source: "print(1)", RoomID: "r1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Run.Stdout != "1\n" {
		t.Fatalf("unexpected stdout %q", res.Run.Stdout)
	}

	item := repo.only(t)
	if item.Month != "2025-03" || item.CreatedAt != "2025-03-14T09:26:53Z" {
		t.Fatalf("unexpected timestamps: %+v", item)
	}
	if item.Status != model.ExecutionStatusOK || item.ExitCode == nil || *item.ExitCode != 0 {
		t.Fatalf("unexpected status: %+v", item)
	}
	if item.SourceBytes != len("print(1)") || len(item.SourceHash) != 64 {
		t.Fatalf("unexpected fingerprint: %+v", item)
	}
	if item.RoomID != "r1" || item.Backend != dispatch.BackendPiston {
		t.Fatalf("unexpected routing fields: %+v", item)
	}

	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.sent))
	}
	if pub.sent[0].roomID != "r1" || pub.sent[0].event != dto.EventExecutionResult {
		t.Fatalf("unexpected publish: %+v", pub.sent[0])
	}
	var event dto.ExecutionResultEvent
	if err := json.Unmarshal(pub.sent[0].body, &event); err != nil {
		t.Fatalf("decode published event: %v", err)
	}
	if event.RequestedBy != "Alice" || event.Run.Stdout != "1\n" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestExecuteWithoutRoomDoesNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewWithRepository(&stubDispatcher{res: okResult()}, nil, pub, nil)

	if _, err := svc.Execute(context.Background(), ExecuteParams{Language: "python", Source: "print(1)"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("expected no publish, got %d", len(pub.sent))
	}
}

func TestExecuteValidation(t *testing.T) {
	svc := NewWithRepository(&stubDispatcher{res: okResult()}, nil, nil, nil)

	_, err := svc.Execute(context.Background(), ExecuteParams{Language: "python", Source: "   "})
	assertCode(t, err, ErrorCodeValidation)

	_, err = svc.Execute(context.Background(), ExecuteParams{Source: "print(1)"})
	assertCode(t, err, ErrorCodeValidation)

	_, err = svc.Execute(context.Background(), ExecuteParams{Language: "cobol", Source: "DISPLAY 'X'."})
	svcErr := assertCode(t, err, ErrorCodeUnsupportedLanguage)
	if svcErr.Message != "unsupported language: cobol" {
		t.Fatalf("unexpected message %q", svcErr.Message)
	}
}

func TestExecuteBackendFailure(t *testing.T) {
	repo := newMemoryRepository()
	pub := &recordingPublisher{}
	backendErr := &dispatch.BackendError{Backend: dispatch.BackendPiston, StatusCode: 500, Body: `{"message":"boom"}`}
	svc := NewWithRepository(&stubDispatcher{err: backendErr}, repo, pub, fixedClock())

	_, err := svc.Execute(context.Background(), ExecuteParams{Language: "python", Source: "print(1)", RoomID: "r1"})
	svcErr := assertCode(t, err, ErrorCodeExecutionFailed)
	if svcErr.Message != "Failed to execute code" {
		t.Fatalf("unexpected message %q", svcErr.Message)
	}
	if svcErr.Details != `{"message":"boom"}` {
		t.Fatalf("unexpected details %q", svcErr.Details)
	}

	if item := repo.only(t); item.Status != model.ExecutionStatusFailed {
		t.Fatalf("expected failed record, got %s", item.Status)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("failures must not be published")
	}
}

func TestExecuteRecordingFailureIgnored(t *testing.T) {
	repo := newMemoryRepository()
	repo.err = errors.New("throttled")
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := NewWithRepository(&stubDispatcher{res: okResult()}, repo, pub, nil)

	if _, err := svc.Execute(context.Background(), ExecuteParams{Language: "python", Source: "print(1)", RoomID: "r1"}); err != nil {
		t.Fatalf("recording and publishing failures must not fail the request: %v", err)
	}
}

func TestGetUsage(t *testing.T) {
	repo := newMemoryRepository()
	repo.items["a"] = model.ExecutionItem{ExecutionID: "a", Month: "2025-03", Language: "python", Status: model.ExecutionStatusOK}
	repo.items["b"] = model.ExecutionItem{ExecutionID: "b", Month: "2025-03", Language: "python", Status: model.ExecutionStatusFailed}
	repo.items["c"] = model.ExecutionItem{ExecutionID: "c", Month: "2025-03", Language: "javascript", Status: model.ExecutionStatusOK}
	repo.items["d"] = model.ExecutionItem{ExecutionID: "d", Month: "2025-02", Language: "java", Status: model.ExecutionStatusOK}
	svc := NewWithRepository(&stubDispatcher{}, repo, nil, fixedClock())

	usage, err := svc.GetUsage(context.Background(), "")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Month != "2025-03" || usage.Total != 3 || usage.Failed != 1 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.ByLanguage["python"] != 2 || usage.ByLanguage["javascript"] != 1 {
		t.Fatalf("unexpected breakdown: %+v", usage.ByLanguage)
	}
	if !usage.PeriodEnd.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period end %s", usage.PeriodEnd)
	}

	usage, err = svc.GetUsage(context.Background(), "2025-02")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Total != 1 {
		t.Fatalf("expected 1 execution in february, got %d", usage.Total)
	}

	_, err = svc.GetUsage(context.Background(), "march")
	assertCode(t, err, ErrorCodeValidation)
}

func TestStoreNotConfigured(t *testing.T) {
	svc := NewWithRepository(&stubDispatcher{}, nil, nil, nil)

	_, err := svc.GetUsage(context.Background(), "")
	assertCode(t, err, ErrorCodeUnavailable)

	_, err = svc.GetExecution(context.Background(), "x")
	assertCode(t, err, ErrorCodeUnavailable)
}

func TestGetExecution(t *testing.T) {
	repo := newMemoryRepository()
	repo.items["a"] = model.ExecutionItem{ExecutionID: "a", Language: "python"}
	svc := NewWithRepository(&stubDispatcher{}, repo, nil, nil)

	item, err := svc.GetExecution(context.Background(), "a")
	if err != nil || item.Language != "python" {
		t.Fatalf("unexpected result %+v, %v", item, err)
	}

	_, err = svc.GetExecution(context.Background(), "missing")
	assertCode(t, err, ErrorCodeNotFound)
}

func failedCount(t *testing.T, language string) float64 {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(executionsTotal)
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make(map[string]string)
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["language"] == language && labels["status"] == "failed" {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestExecuteCountsMetrics(t *testing.T) {
	before := failedCount(t, "ruby")

	svc := NewWithRepository(&stubDispatcher{err: errors.New("boom")}, nil, nil, fixedClock())
	if _, err := svc.Execute(context.Background(), ExecuteParams{Language: "ruby", Source: "puts 1"}); err == nil {
		t.Fatal("expected backend error")
	}

	if got := failedCount(t, "ruby") - before; got != 1 {
		t.Fatalf("expected failed counter to grow by 1, got %v", got)
	}
}
