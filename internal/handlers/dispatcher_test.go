package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deferq/internal/domain"
)

func TestDispatcherUnknownType(t *testing.T) {
	d := NewDispatcher()
	d.Register(domain.SingleActivation, Echo{})

	_, err := d.Execute(context.Background(), domain.SingleSuspension, nil)
	if err == nil || !strings.Contains(err.Error(), "no handler") {
		t.Fatalf("expected no-handler error, got %v", err)
	}
}

func TestDispatcherEcho(t *testing.T) {
	d := NewDispatcher()
	d.RegisterAll(Echo{})

	res, err := d.Execute(context.Background(), domain.SingleSuspension, json.RawMessage(`{"reason":"billing"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.Message == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEchoRejectsMalformedParams(t *testing.T) {
	_, err := Echo{}.Handle(context.Background(), domain.SinglePolicyChange, json.RawMessage(`{"policy_id":42}`))
	if err == nil {
		t.Fatalf("expected decode error for wrong param type")
	}
}

func TestProvisionerPostsAction(t *testing.T) {
	var gotAuth string
	var gotBody provisionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"5 users suspended"}`))
	}))
	defer srv.Close()

	p := &Provisioner{Endpoint: srv.URL, Token: "exec-token"}
	msg, err := p.Handle(context.Background(), domain.BulkSuspension, json.RawMessage(`{"reason":"abuse"}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if msg != "5 users suspended" {
		t.Fatalf("expected remote message, got %q", msg)
	}
	if gotAuth != "Bearer exec-token" {
		t.Fatalf("auth header wrong: %q", gotAuth)
	}
	if gotBody.Action != domain.BulkSuspension {
		t.Fatalf("action wrong: %s", gotBody.Action)
	}
}

func TestProvisionerRemoteErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", 502)
	}))
	defer srv.Close()

	p := &Provisioner{Endpoint: srv.URL}
	_, err := p.Handle(context.Background(), domain.SingleActivation, nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected HTTP error, got %v", err)
	}
}
