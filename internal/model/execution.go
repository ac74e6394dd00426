package model

const (
	ExecutionsTable = "Executions"

	// ExecutionsByMonthIndex is a GSI on month (hash) and createdAt (range).
	ExecutionsByMonthIndex = "byMonth"
)

type ExecutionStatus string

const (
	ExecutionStatusOK     ExecutionStatus = "ok"
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// ExecutionItem records one dispatch. The source itself is never stored,
// only its size and fingerprint.
type ExecutionItem struct {
	ExecutionID string          `dynamodbav:"executionId"`
	Month       string          `dynamodbav:"month"`
	CreatedAt   string          `dynamodbav:"createdAt"`
	Language    string          `dynamodbav:"language"`
	Version     string          `dynamodbav:"version"`
	Backend     string          `dynamodbav:"backend"`
	Status      ExecutionStatus `dynamodbav:"status"`
	ExitCode    *int            `dynamodbav:"exitCode,omitempty"`
	Signal      string          `dynamodbav:"signal,omitempty"`
	DurationMs  int64           `dynamodbav:"durationMs"`
	SourceBytes int             `dynamodbav:"sourceBytes"`
	SourceHash  string          `dynamodbav:"sourceHash"`
	RoomID      string          `dynamodbav:"roomId,omitempty"`
}
