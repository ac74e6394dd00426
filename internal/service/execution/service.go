package execution

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"codesync-backend/internal/database"
	"codesync-backend/internal/dto"
	dispatch "codesync-backend/internal/execution"
	"codesync-backend/internal/model"
	"codesync-backend/utils"
)

type ErrorCode string

const (
	ErrorCodeValidation          ErrorCode = "validation_error"
	ErrorCodeUnsupportedLanguage ErrorCode = "unsupported_language"
	ErrorCodeExecutionFailed     ErrorCode = "execution_failed"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeUnavailable         ErrorCode = "unavailable"
	ErrorCodeInternal            ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	// Details carries the raw backend payload for execution failures.
	Details string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request) (*dto.ExecuteResponse, dispatch.Route, error)
	Languages() []dispatch.Route
}

type Publisher interface {
	Publish(ctx context.Context, roomID, event string, payload any) error
}

type ExecuteParams struct {
	Language    string
	Version     string
	Source      string
	Stdin       string
	RoomID      string
	DisplayName string
}

type UsageResult struct {
	Month       string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Total       int
	Failed      int
	ByLanguage  map[string]int
}

type Service struct {
	dispatcher Dispatcher
	repo       Repository
	publisher  Publisher
	now        func() time.Time
}

// New wires the service. db and publisher may be nil: without db nothing is
// recorded and usage is unavailable, without publisher results stay with the
// caller.
func New(dispatcher Dispatcher, db *database.Database, publisher Publisher) *Service {
	var repo Repository
	if db != nil {
		repo = NewDynamoRepository(db)
	}
	return NewWithRepository(dispatcher, repo, publisher, nil)
}

func NewWithRepository(dispatcher Dispatcher, repo Repository, publisher Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		dispatcher: dispatcher,
		repo:       repo,
		publisher:  publisher,
		now:        now,
	}
}

func (s *Service) Languages() []dispatch.Route {
	return s.dispatcher.Languages()
}

// Execute runs the source on the backend routed for its language. Compile and
// runtime failures of the program are results, not errors.
func (s *Service) Execute(ctx context.Context, params ExecuteParams) (*dto.ExecuteResponse, error) {
	if strings.TrimSpace(params.Source) == "" {
		return nil, newError(ErrorCodeValidation, "code is required", nil)
	}
	if strings.TrimSpace(params.Language) == "" {
		return nil, newError(ErrorCodeValidation, "language is required", nil)
	}

	started := s.now()
	res, route, err := s.dispatcher.Execute(ctx, dispatch.Request{
		Language: params.Language,
		Version:  params.Version,
		Source:   params.Source,
		Stdin:    params.Stdin,
	})
	elapsed := s.now().Sub(started)

	if errors.Is(err, dispatch.ErrUnsupportedLanguage) {
		return nil, newError(ErrorCodeUnsupportedLanguage, fmt.Sprintf("unsupported language: %s", strings.ToLower(strings.TrimSpace(params.Language))), err)
	}

	status := string(model.ExecutionStatusOK)
	if err != nil {
		status = string(model.ExecutionStatusFailed)
	}
	observeExecution(route.Language, route.Backend, status, elapsed)
	s.record(ctx, params, route, res, err, started, elapsed)

	if err != nil {
		slog.Error("execution backend failed", "language", route.Language, "backend", route.Backend, "error", err)
		svcErr := newError(ErrorCodeExecutionFailed, "Failed to execute code", err)
		var backendErr *dispatch.BackendError
		if errors.As(err, &backendErr) {
			svcErr.Details = backendErr.Body
		}
		return nil, svcErr
	}

	if params.RoomID != "" && s.publisher != nil {
		event := dto.ExecutionResultEvent{
			Language:    res.Language,
			Version:     res.Version,
			Run:         res.Run,
			RequestedBy: params.DisplayName,
		}
		if err := s.publisher.Publish(ctx, params.RoomID, dto.EventExecutionResult, event); err != nil {
			slog.Warn("failed to publish execution result", "room", params.RoomID, "error", err)
		}
	}

	return res, nil
}

func (s *Service) record(ctx context.Context, params ExecuteParams, route dispatch.Route, res *dto.ExecuteResponse, runErr error, started time.Time, elapsed time.Duration) {
	if s.repo == nil {
		return
	}

	sum := blake2b.Sum256([]byte(params.Source))
	item := model.ExecutionItem{
		ExecutionID: utils.NewExecutionID(),
		Month:       started.UTC().Format(monthLayout),
		CreatedAt:   started.UTC().Format(time.RFC3339),
		Language:    route.Language,
		Version:     route.Version,
		Backend:     route.Backend,
		Status:      model.ExecutionStatusOK,
		DurationMs:  elapsed.Milliseconds(),
		SourceBytes: len(params.Source),
		SourceHash:  hex.EncodeToString(sum[:]),
		RoomID:      params.RoomID,
	}
	if runErr != nil {
		item.Status = model.ExecutionStatusFailed
	} else {
		item.ExitCode = res.Run.Code
		if res.Run.Signal != nil {
			item.Signal = *res.Run.Signal
		}
	}

	if err := s.repo.RecordExecution(ctx, item); err != nil {
		slog.Warn("failed to record execution", "executionId", item.ExecutionID, "error", err)
	}
}

func (s *Service) GetExecution(ctx context.Context, executionID string) (model.ExecutionItem, error) {
	if s.repo == nil {
		return model.ExecutionItem{}, newError(ErrorCodeUnavailable, "execution store not configured", nil)
	}
	executionID = strings.TrimSpace(executionID)
	if executionID == "" {
		return model.ExecutionItem{}, newError(ErrorCodeValidation, "execution id is required", nil)
	}

	item, err := s.repo.GetExecution(ctx, executionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ExecutionItem{}, newError(ErrorCodeNotFound, "execution not found", err)
		}
		return model.ExecutionItem{}, newError(ErrorCodeInternal, "failed to load execution", err)
	}
	return item, nil
}

const monthLayout = "2006-01"

// GetUsage aggregates the executions of a calendar month (UTC). An empty
// month means the current one.
func (s *Service) GetUsage(ctx context.Context, month string) (UsageResult, error) {
	if s.repo == nil {
		return UsageResult{}, newError(ErrorCodeUnavailable, "execution store not configured", nil)
	}

	var start time.Time
	month = strings.TrimSpace(month)
	if month == "" {
		now := s.now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse(monthLayout, month)
		if err != nil {
			return UsageResult{}, newError(ErrorCodeValidation, "month must be formatted as YYYY-MM", err)
		}
		start = parsed.UTC()
	}
	end := start.AddDate(0, 1, 0)
	key := start.Format(monthLayout)

	items, err := s.repo.ListExecutionsByMonth(ctx, key)
	if err != nil {
		return UsageResult{}, newError(ErrorCodeInternal, "failed to load usage", err)
	}

	result := UsageResult{
		Month:       key,
		PeriodStart: start,
		PeriodEnd:   end,
		ByLanguage:  make(map[string]int),
	}
	for _, item := range items {
		result.Total++
		if item.Status == model.ExecutionStatusFailed {
			result.Failed++
		}
		result.ByLanguage[item.Language]++
	}
	return result, nil
}
