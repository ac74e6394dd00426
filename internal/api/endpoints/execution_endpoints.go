package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codesync-backend/internal/dto"
	executionservice "codesync-backend/internal/service/execution"
)

type ExecutionEndpoints interface {
	Execute(http.ResponseWriter, *http.Request) error
	Languages(http.ResponseWriter, *http.Request) error
	Usage(http.ResponseWriter, *http.Request) error
	Execution(http.ResponseWriter, *http.Request) error
}

type executionEndpoints struct {
	service *executionservice.Service
	// executionPrefix is the path prefix of single execution lookups.
	executionPrefix string
}

func NewExecutionEndpoints(service *executionservice.Service, prefix string) ExecutionEndpoints {
	return &executionEndpoints{
		service:         service,
		executionPrefix: strings.TrimRight(prefix, "/") + "/executions/",
	}
}

func (h *executionEndpoints) Execute(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleExecute,
	})
}

func (h *executionEndpoints) Languages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleLanguages,
	})
}

func (h *executionEndpoints) Usage(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleUsage,
	})
}

func (h *executionEndpoints) Execution(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleGetExecution,
	})
}

func (h *executionEndpoints) handleExecute(w http.ResponseWriter, r *http.Request) error {
	var req dto.ExecuteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	res, err := h.service.Execute(r.Context(), executionservice.ExecuteParams{
		Language:    req.Lang(),
		Version:     strings.TrimSpace(req.Version),
		Source:      req.Source(),
		Stdin:       req.Stdin,
		RoomID:      req.RoomID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, res)
}

func (h *executionEndpoints) handleLanguages(w http.ResponseWriter, r *http.Request) error {
	routes := h.service.Languages()
	resp := make([]dto.LanguageResponse, 0, len(routes))
	for _, route := range routes {
		resp = append(resp, dto.LanguageResponse{Language: route.Language, Backend: route.Backend, Version: route.Version})
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *executionEndpoints) handleUsage(w http.ResponseWriter, r *http.Request) error {
	result, err := h.service.GetUsage(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ExecutionUsageResponse{
		Month:       result.Month,
		PeriodStart: result.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   result.PeriodEnd.Format(time.RFC3339),
		Total:       result.Total,
		Failed:      result.Failed,
		ByLanguage:  result.ByLanguage,
	})
}

func (h *executionEndpoints) handleGetExecution(w http.ResponseWriter, r *http.Request) error {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, h.executionPrefix), "/")
	if id == "" || strings.Contains(id, "/") {
		return &HTTPError{StatusCode: http.StatusNotFound, Message: "Execution not found", ErrorLog: fmt.Errorf("invalid execution path: %s", r.URL.Path)}
	}

	item, err := h.service.GetExecution(r.Context(), id)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ExecutionRecordResponse{
		ExecutionID: item.ExecutionID,
		CreatedAt:   item.CreatedAt,
		Language:    item.Language,
		Version:     item.Version,
		Backend:     item.Backend,
		Status:      string(item.Status),
		ExitCode:    item.ExitCode,
		Signal:      item.Signal,
		DurationMs:  item.DurationMs,
		SourceBytes: item.SourceBytes,
		SourceHash:  item.SourceHash,
		RoomID:      item.RoomID,
	})
}

func (h *executionEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *executionservice.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("execution service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case executionservice.ErrorCodeValidation, executionservice.ErrorCodeUnsupportedLanguage:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case executionservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case executionservice.ErrorCodeUnavailable:
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: svcErr.Message, ErrorLog: logErr}
	case executionservice.ErrorCodeExecutionFailed:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: svcErr.Message, Details: svcErr.Details, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
