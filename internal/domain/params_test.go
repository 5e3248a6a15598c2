package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeParamsCoversAllTypes(t *testing.T) {
	for _, typ := range AllTaskTypes() {
		if _, err := DecodeParams(typ, nil); err != nil {
			t.Fatalf("%s: empty params must decode, got %v", typ, err)
		}
	}
}

func TestDecodeParamsTyped(t *testing.T) {
	v, err := DecodeParams(SingleSuspension, json.RawMessage(`{"reason":"billing","notify_user":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := v.(*SuspensionParams)
	if !ok {
		t.Fatalf("expected *SuspensionParams, got %T", v)
	}
	if p.Reason != "billing" || !p.NotifyUser {
		t.Fatalf("fields wrong: %+v", p)
	}
}

func TestDecodeParamsUnknownType(t *testing.T) {
	if _, err := DecodeParams(TaskType("MAKE_COFFEE"), nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	orig := Task{
		ID:        "tsk_1",
		TargetIDs: []string{"U1"},
		Result:    &Result{Success: true, Message: "ok"},
	}
	c := orig.Clone()
	c.TargetIDs[0] = "U9"
	c.Result.Message = "changed"
	if orig.TargetIDs[0] != "U1" || orig.Result.Message != "ok" {
		t.Fatalf("clone shares state with original")
	}
}
