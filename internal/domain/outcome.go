package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when an import run is not on record.
var ErrRunNotFound = errors.New("import run not found")

// ResultKind classifies the terminal state of one imported row.
type ResultKind string

const (
	ResultCreated        ResultKind = "Created"
	ResultDuplicateFound ResultKind = "DuplicateFound"
	ResultFailed         ResultKind = "Failed"
	ResultError          ResultKind = "Error"
)

// ImportOutcome records what happened to one input row.
type ImportOutcome struct {
	RowIndex int           `json:"row"`
	Result   ResultKind    `json:"result"`
	RemoteID string        `json:"remoteId,omitempty"`
	Message  string        `json:"message,omitempty"`
	Payload  RecordPayload `json:"payload"`
}

// Succeeded reports whether the row ended with a remote identifier.
func (o ImportOutcome) Succeeded() bool {
	return o.RemoteID != ""
}

// ResultText renders the result column of the import log.
func (o ImportOutcome) ResultText() string {
	if o.Message == "" {
		return string(o.Result)
	}
	return string(o.Result) + ": " + o.Message
}

// ImportSummary aggregates row outcomes.
type ImportSummary struct {
	TotalRows    int `json:"totalRows"`
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// ImportRun describes one execution of the importer.
type ImportRun struct {
	ID              uuid.UUID     `json:"id"`
	FileName        string        `json:"fileName"`
	Endpoint        string        `json:"endpoint"`
	CheckDuplicates bool          `json:"checkDuplicates"`
	Summary         ImportSummary `json:"summary"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
}
