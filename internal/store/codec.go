package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"deferq/internal/domain"
)

// envelope is the persisted wire form: a version stamp plus the raw task
// records. Records are kept as raw JSON so a single malformed record can be
// dropped without losing the rest of the list.
type envelope struct {
	Version uint64            `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Tasks   []json.RawMessage `json:"tasks"`
}

func encodeTasks(tasks []domain.Task, version uint64, now time.Time) ([]byte, error) {
	env := envelope{Version: version, SavedAt: now, Tasks: make([]json.RawMessage, 0, len(tasks))}
	for _, t := range tasks {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal task %s: %w", t.ID, err)
		}
		env.Tasks = append(env.Tasks, b)
	}
	return json.Marshal(env)
}

// decodeTasks parses an envelope blob. Records that fail to parse or carry an
// invalid id/status are skipped with a warning; the rest load normally.
func decodeTasks(blob []byte) ([]domain.Task, uint64, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, 0, fmt.Errorf("decode task list envelope: %w", err)
	}
	tasks := make([]domain.Task, 0, len(env.Tasks))
	for i, raw := range env.Tasks {
		var t domain.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			log.Warn().Err(err).Int("record", i).Msg("dropping malformed task record")
			continue
		}
		if t.ID == "" || !t.Status.Valid() {
			log.Warn().Int("record", i).Str("id", t.ID).Str("status", string(t.Status)).Msg("dropping invalid task record")
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, env.Version, nil
}
