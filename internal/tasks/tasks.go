package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeImportCSV      = "import:csv"
	TypeImportPostgres = "import:postgres"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	ImportRunID      string `json:"import_run_id"`
	Path             string `json:"path,omitempty"`
	ConnectionString string `json:"connection_string,omitempty"`
}

// NewImportCSVTask creates a task loading the CSV file at path into run importRunID
func NewImportCSVTask(importRunID, path string) (*asynq.Task, error) {
	return newTask(TypeImportCSV, TaskPayload{
		ImportRunID: importRunID,
		Path:        path,
	})
}

// NewImportPostgresTask creates a task loading a legacy PostgreSQL database into run importRunID
func NewImportPostgresTask(importRunID, connectionString string) (*asynq.Task, error) {
	return newTask(TypeImportPostgres, TaskPayload{
		ImportRunID:      importRunID,
		ConnectionString: connectionString,
	})
}

func newTask(typename string, p TaskPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(typename, payload), nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.ImportRunID == "" {
		return payload, fmt.Errorf("payload has no import run id")
	}
	return payload, nil
}
