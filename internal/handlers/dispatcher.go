// Package handlers implements the execution collaborator: a registry of
// per-type handlers behind a single Execute entry point.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"deferq/internal/domain"
)

// Handler performs one kind of business operation. It returns a human-readable
// outcome message; any error marks the task failed.
type Handler interface {
	Handle(ctx context.Context, typ domain.TaskType, params json.RawMessage) (string, error)
}

// Dispatcher routes task types to registered handlers.
type Dispatcher struct {
	handlers map[domain.TaskType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[domain.TaskType]Handler{}}
}

func (d *Dispatcher) Register(typ domain.TaskType, h Handler) {
	d.handlers[typ] = h
}

// RegisterAll registers one handler for every known task type.
func (d *Dispatcher) RegisterAll(h Handler) {
	for _, typ := range domain.AllTaskTypes() {
		d.handlers[typ] = h
	}
}

func (d *Dispatcher) Execute(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
	h, ok := d.handlers[typ]
	if !ok {
		return domain.Result{}, fmt.Errorf("no handler registered for %s", typ)
	}
	msg, err := h.Handle(ctx, typ, params)
	if err != nil {
		return domain.Result{}, err
	}
	if msg == "" {
		msg = "ok"
	}
	return domain.Result{Success: true, Message: msg}, nil
}
