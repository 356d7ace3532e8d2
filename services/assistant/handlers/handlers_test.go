// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runreg"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/sessionctx"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// answerInvoker always finalizes immediately with a fixed answer.
type answerInvoker struct{ answer string }

func (a *answerInvoker) Invoke(context.Context, string, provider.Tier, provider.Request) (*provider.Response, error) {
	return &provider.Response{Answer: a.answer}, nil
}

// blockingInvoker parks until its context is cancelled.
type blockingInvoker struct{ started chan struct{} }

func (b *blockingInvoker) Invoke(ctx context.Context, _ string, _ provider.Tier, _ provider.Request) (*provider.Response, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, &provider.InvokeError{Reason: "interrupted", Err: ctx.Err()}
}

func newTestDeps(t *testing.T, inv agent.Invoker) *Deps {
	t.Helper()
	store := tools.NewMemStore()
	store.Initiatives = []tools.Initiative{
		{ID: "init-1", Title: "Churn Reduction", Status: "active"},
	}
	registry := tools.BuiltinCatalog(store)
	sessions := sessionctx.NewStore()
	t.Cleanup(sessions.Close)

	engine, err := agent.NewEngine(inv, registry, tools.NewDispatcher(registry), sessions,
		agent.EngineConfig{DefaultSkills: tools.AllSkills})
	require.NoError(t, err)

	return &Deps{
		Engine:          engine,
		Gateway:         provider.NewGateway(),
		Runs:            runreg.NewRegistry(nil),
		Sessions:        sessions,
		DefaultProvider: "local",
	}
}

func newTestRouter(deps *Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(&extensions.NopAuthProvider{}))
	router.POST("/v1/ask", HandleAsk(deps))
	router.POST("/v1/ask/stream", HandleAskStream(deps))
	router.POST("/v1/runs/cancel", HandleCancel(deps))
	router.PUT("/v1/sessions/:sessionId/skills", SetSessionSkills(deps))
	router.GET("/v1/sessions/:sessionId/context", GetSessionContext(deps))
	return router
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAsk_ReturnsAnswerAndRunID(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "One active initiative."})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/ask", datatypes.AskRequest{Query: "what is active?"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "One active initiative.", resp.Answer)
	assert.NotEmpty(t, resp.RunID)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, string(agent.StateDone), resp.State)
}

// toolThenAnswerInvoker requests one tool call, then finalizes.
type toolThenAnswerInvoker struct {
	mu    sync.Mutex
	calls int
}

func (s *toolThenAnswerInvoker) Invoke(context.Context, string, provider.Tier, provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == 1 {
		return &provider.Response{
			Thought:  "look up the active initiatives",
			ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}},
		}, nil
	}
	return &provider.Response{Answer: "One active initiative: Churn Reduction."}, nil
}

func TestHandleAsk_ReplaysStepsWithObservationsAndTiming(t *testing.T) {
	deps := newTestDeps(t, &toolThenAnswerInvoker{})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/ask", datatypes.AskRequest{Query: "what is active?"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.NotEmpty(t, resp.ExecutionTime)
	_, err := time.ParseDuration(resp.ExecutionTime)
	require.NoError(t, err, "execution_time must be a parseable duration")

	var sawTool bool
	var observed string
	for _, step := range resp.Steps {
		if step.Tool == "list_initiatives" {
			sawTool = true
		}
		if step.Observation != "" {
			observed = step.Observation
		}
	}
	require.True(t, sawTool, "steps must replay the tool call")
	assert.Contains(t, observed, "init-1")
	assert.Contains(t, observed, "Churn Reduction")
}

func TestHandleAsk_RejectsEmptyQuery(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "unused"})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/ask", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk_ReusesClientSessionID(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "ok"})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/ask", datatypes.AskRequest{
		SessionID: "sess-fixed", Query: "hello",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-fixed", resp.SessionID)
}

func TestHandleAsk_RejectsMalformedSessionID(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "unused"})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/ask", datatypes.AskRequest{
		SessionID: "sess:1\nwith newline", Query: "hello",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSessionContext_RejectsMalformedID(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "unused"})
	router := newTestRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/bad%3Aid/context", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCancel_UnknownRun(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "ok"})
	router := newTestRouter(deps)

	w := postJSON(router, "/v1/runs/cancel", datatypes.CancelRequest{RunID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCancel_StopsInFlightRun(t *testing.T) {
	inv := &blockingInvoker{started: make(chan struct{}, 1)}
	deps := newTestDeps(t, inv)
	router := newTestRouter(deps)

	type asyncResult struct {
		code int
		body []byte
	}
	done := make(chan asyncResult, 1)
	go func() {
		w := postJSON(router, "/v1/ask", datatypes.AskRequest{
			SessionID: "sess-1", Query: "long question",
		})
		done <- asyncResult{w.Code, w.Body.Bytes()}
	}()

	// Wait for the run to reach the provider, then find and cancel it.
	select {
	case <-inv.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run never reached the provider")
	}

	var handles []runreg.Handle
	for i := 0; i < 100; i++ {
		handles = deps.Runs.BySession("sess-1")
		if len(handles) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, handles, 1)

	w := postJSON(router, "/v1/runs/cancel", datatypes.CancelRequest{RunID: handles[0].RunID})
	require.Equal(t, http.StatusOK, w.Code)
	var cr datatypes.CancelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cr))
	assert.True(t, cr.Cancelled)

	select {
	case res := <-done:
		assert.Equal(t, http.StatusConflict, res.code)
	case <-time.After(2 * time.Second):
		t.Fatal("ask request did not finish after cancel")
	}
}

// recordingAudit captures audit events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, e extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func TestSetSessionSkills_RoundTrip(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "ok"})
	audit := &recordingAudit{}
	deps.Audit = audit
	router := newTestRouter(deps)

	data, _ := json.Marshal(map[string]any{"skills": []string{"analytics"}})
	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/sess-1/skills", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/context", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snap sessionctx.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, []string{"analytics"}, snap.Skills)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "session.skills", audit.events[0].EventType)
	assert.Equal(t, "sess-1", audit.events[0].ResourceID)
	assert.Equal(t, "local-user", audit.events[0].UserID)
}

func TestSetSessionSkills_RejectsUnknownSkill(t *testing.T) {
	deps := newTestDeps(t, &answerInvoker{answer: "ok"})
	router := newTestRouter(deps)

	data, _ := json.Marshal(map[string]any{"skills": []string{"piracy"}})
	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/sess-1/skills", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
