package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"deferq/internal/domain"
)

// Echo validates parameters and logs the action without calling anything.
// Default handler when no provisioning endpoint is configured.
type Echo struct{}

func (Echo) Handle(ctx context.Context, typ domain.TaskType, params json.RawMessage) (string, error) {
	if _, err := domain.DecodeParams(typ, params); err != nil {
		return "", err
	}
	log.Debug().Str("type", string(typ)).RawJSON("params", nonEmpty(params)).Msg("echo handler")
	return fmt.Sprintf("%s executed (echo)", typ), nil
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
