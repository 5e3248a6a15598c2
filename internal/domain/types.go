package domain

import (
	"encoding/json"
	"time"
)

// TaskType identifies the operator action a deferred task performs.
type TaskType string

const (
	BulkUserRegistration   TaskType = "BULK_USER_REGISTRATION"
	BulkActivation         TaskType = "BULK_ACTIVATION"
	BulkSuspension         TaskType = "BULK_SUSPENSION"
	BulkBlocking           TaskType = "BULK_BLOCKING"
	BulkPolicyChange       TaskType = "BULK_POLICY_CHANGE"
	BulkDeviceRegistration TaskType = "BULK_DEVICE_REGISTRATION"
	BulkDeviceRename       TaskType = "BULK_DEVICE_RENAME"
	BulkResendPassword     TaskType = "BULK_RESEND_PASSWORD"
	SingleActivation       TaskType = "SINGLE_ACTIVATION"
	SingleSuspension       TaskType = "SINGLE_SUSPENSION"
	SingleBlocking         TaskType = "SINGLE_BLOCKING"
	SinglePolicyChange     TaskType = "SINGLE_POLICY_CHANGE"
	SingleResendPassword   TaskType = "SINGLE_RESEND_PASSWORD"
)

// AllTaskTypes returns the closed set of task types.
func AllTaskTypes() []TaskType {
	return []TaskType{
		BulkUserRegistration, BulkActivation, BulkSuspension, BulkBlocking,
		BulkPolicyChange, BulkDeviceRegistration, BulkDeviceRename,
		BulkResendPassword, SingleActivation, SingleSuspension,
		SingleBlocking, SinglePolicyChange, SingleResendPassword,
	}
}

func (t TaskType) Valid() bool {
	for _, k := range AllTaskTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// Status is the task lifecycle state. Transitions only move forward:
// PENDING -> EXECUTING -> COMPLETED|FAILED, or PENDING -> CANCELLED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Result is the outcome of an execution attempt or a cancellation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Task is a one-shot deferred action against a set of targets.
// Only Status, ExecutedAt and Result change after creation.
type Task struct {
	ID            string          `json:"id"`
	Type          TaskType        `json:"type"`
	TargetType    string          `json:"target_type"`
	TargetIDs     []string        `json:"target_ids"`
	TargetCount   int             `json:"target_count"`
	TargetDetails json.RawMessage `json:"target_details,omitempty"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	CreatedBy     string          `json:"created_by"`
	CreatedByName string          `json:"created_by_name"`
	ExecutedAt    *time.Time      `json:"executed_at,omitempty"`
	Result        *Result         `json:"result,omitempty"`
}

// TaskInput carries the caller-supplied fields of a new task. ID, CreatedAt
// and Status are assigned by the registry.
type TaskInput struct {
	Type          TaskType
	TargetType    string
	TargetIDs     []string
	TargetCount   int // 0 means derive from TargetIDs
	TargetDetails json.RawMessage
	ScheduledFor  time.Time
	Parameters    json.RawMessage
	CreatedBy     string
	CreatedByName string
}

// Due reports whether the task is eligible for execution at now.
func (t Task) Due(now time.Time) bool {
	return t.Status == StatusPending && !t.ScheduledFor.After(now)
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (t Task) Clone() Task {
	c := t
	if t.TargetIDs != nil {
		c.TargetIDs = append([]string(nil), t.TargetIDs...)
	}
	if t.TargetDetails != nil {
		c.TargetDetails = append(json.RawMessage(nil), t.TargetDetails...)
	}
	if t.Parameters != nil {
		c.Parameters = append(json.RawMessage(nil), t.Parameters...)
	}
	if t.ExecutedAt != nil {
		at := *t.ExecutedAt
		c.ExecutedAt = &at
	}
	if t.Result != nil {
		res := *t.Result
		c.Result = &res
	}
	return c
}
