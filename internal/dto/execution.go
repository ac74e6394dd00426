package dto

import "strings"

// ExecuteRequest accepts both the short field names the web client sends and
// the long ones used by other callers.
type ExecuteRequest struct {
	Code        string `json:"code"`
	SourceCode  string `json:"sourceCode"`
	Language    string `json:"language"`
	LanguageID  string `json:"languageId"`
	Version     string `json:"version,omitempty"`
	Stdin       string `json:"stdin,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (r ExecuteRequest) Source() string {
	if r.Code != "" {
		return r.Code
	}
	return r.SourceCode
}

func (r ExecuteRequest) Lang() string {
	if l := strings.TrimSpace(r.Language); l != "" {
		return strings.ToLower(l)
	}
	return strings.ToLower(strings.TrimSpace(r.LanguageID))
}

type ExecutionStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type ExecuteResponse struct {
	Language string          `json:"language"`
	Version  string          `json:"version"`
	Run      ExecutionStage  `json:"run"`
	Compile  *ExecutionStage `json:"compile,omitempty"`
}

type LanguageResponse struct {
	Language string `json:"language"`
	Backend  string `json:"backend"`
	Version  string `json:"version"`
}

type ExecutionUsageResponse struct {
	Month       string         `json:"month"`
	PeriodStart string         `json:"periodStart"`
	PeriodEnd   string         `json:"periodEnd"`
	Total       int            `json:"total"`
	Failed      int            `json:"failed"`
	ByLanguage  map[string]int `json:"byLanguage"`
}

type RoomResponse struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

type StatsResponse struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// ExecutionRecordResponse is a stored execution. It never includes the source.
type ExecutionRecordResponse struct {
	ExecutionID string `json:"executionId"`
	CreatedAt   string `json:"createdAt"`
	Language    string `json:"language"`
	Version     string `json:"version"`
	Backend     string `json:"backend"`
	Status      string `json:"status"`
	ExitCode    *int   `json:"exitCode"`
	Signal      string `json:"signal,omitempty"`
	DurationMs  int64  `json:"durationMs"`
	SourceBytes int    `json:"sourceBytes"`
	SourceHash  string `json:"sourceHash"`
	RoomID      string `json:"roomId,omitempty"`
}
