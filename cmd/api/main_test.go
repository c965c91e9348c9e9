package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"disputeflow/auth"
	"disputeflow/detector"
	"disputeflow/dispute"
)

const (
	creatorAddr    = "0x00000000000000000000000000000000000cafe1"
	respondentAddr = "0x00000000000000000000000000000000000beef2"
)

type testAPI struct {
	handler http.Handler
	tokens  map[string]string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	engine := dispute.NewEngine(dispute.NewMemoryStore(), nil, dispute.Config{
		ArbitrationPeriod:  7 * 24 * time.Hour,
		DaoVotingThreshold: 0.66,
	})
	authSvc := auth.NewService(auth.NewMemoryRepository(), "test-secret")
	server := NewServer(engine, authSvc)

	api := &testAPI{handler: server.Handler(), tokens: make(map[string]string)}
	for _, addr := range []string{creatorAddr, respondentAddr} {
		api.register(t, addr)
		api.tokens[addr] = api.login(t, addr)
	}
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, addr string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"address":      addr,
		"display_name": "Test Party",
		"password":     "supersafe",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", addr, rec.Code, rec.Body.String())
	}
}

func (a *testAPI) login(t *testing.T, addr string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"address":  addr,
		"password": "supersafe",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", addr, rec.Code)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func (a *testAPI) createDispute(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/disputes", a.tokens[creatorAddr], map[string]any{
		"token_id":           "token-42",
		"respondent_address": respondentAddr,
		"infringement_data": detector.Report{
			AssetPath: "/assets/token-42.png",
			AssetType: "image",
			Threshold: 0.75,
			PotentialInfringement: []detector.Match{{
				Type:             "image",
				URL:              "https://mirror.example/token-42.png",
				Source:           "web",
				Similarity:       0.88,
				ExceedsThreshold: true,
			}},
			CheckCompleted: true,
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create dispute: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createDisputeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp.DisputeID
}

func TestAPI_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/disputes", "", map[string]any{"token_id": "token-42"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/disputes", "bogus-token", map[string]any{"token_id": "token-42"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", rec.Code)
	}
}

func TestAPI_CreateAndGetDispute(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodGet, "/api/disputes/"+id, api.tokens[creatorAddr], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	var resp disputeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dispute: %v", err)
	}
	if resp.Status != string(dispute.StatusPending) {
		t.Fatalf("expected pending, got %s", resp.Status)
	}
	if resp.CreatorAddress != creatorAddr {
		t.Fatalf("creator must come from the token, got %s", resp.CreatorAddress)
	}
	if len(resp.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(resp.History))
	}

	var report detector.Report
	if err := json.Unmarshal(resp.InfringementData, &report); err != nil {
		t.Fatalf("infringement data no longer decodes as a detector report: %v", err)
	}
	if !report.CheckCompleted || len(report.PotentialInfringement) != 1 {
		t.Fatalf("detector report lost through the API round trip: %+v", report)
	}
}

func TestAPI_GetDisputeNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/disputes/missing", api.tokens[creatorAddr], nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAPI_SettlementLifecycle(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodPost, "/api/disputes/"+id+"/settlement", api.tokens[creatorAddr], map[string]any{
		"terms": map[string]any{"eth": 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("propose: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/api/disputes/"+id+"/settlement/response", api.tokens[respondentAddr], map[string]any{
		"accepted": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: expected 200, got %d", rec.Code)
	}

	var resp settlementResponseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DisputeStatus != string(dispute.StatusResolved) {
		t.Fatalf("expected resolved, got %s", resp.DisputeStatus)
	}
}

func TestAPI_SettlementResponseWithoutOffer(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodPost, "/api/disputes/"+id+"/settlement/response", api.tokens[respondentAddr], map[string]any{
		"accepted": true,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without offer, got %d", rec.Code)
	}
}

func TestAPI_TerminalDisputeConflicts(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodPost, "/api/disputes/"+id+"/resolution", api.tokens[creatorAddr], map[string]any{
		"type":    "arbitration",
		"details": "done",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/disputes/"+id+"/freeze", api.tokens[creatorAddr], nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for mutation on resolved dispute, got %d", rec.Code)
	}
}

func TestAPI_ArbitrationValidation(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodPost, "/api/disputes/"+id+"/arbitration", api.tokens[creatorAddr], map[string]any{
		"method": "coin_flip",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid method, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/disputes/"+id+"/arbitration", api.tokens[creatorAddr], map[string]any{
		"method": "dao_voting",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp arbitrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode arbitration: %v", err)
	}
	if resp.Extra["required_majority"] != 0.66 {
		t.Fatalf("expected dao threshold in arbitration data, got %+v", resp.Extra)
	}
}

func TestAPI_ListActiveFilters(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)
	api.createDispute(t)

	rec := api.do(t, http.MethodGet, "/api/disputes?address="+respondentAddr, api.tokens[creatorAddr], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var resp listDisputesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Disputes) != 2 {
		t.Fatalf("expected 2 active disputes, got %d", len(resp.Disputes))
	}

	rec = api.do(t, http.MethodPost, "/api/disputes/"+id+"/rejection", api.tokens[respondentAddr], map[string]any{
		"reason": "no match",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/api/disputes?address="+respondentAddr, api.tokens[creatorAddr], nil)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Disputes) != 1 {
		t.Fatalf("rejected dispute must leave the active list, got %d", len(resp.Disputes))
	}
}

func TestAPI_HistoryEndpoint(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	api.do(t, http.MethodPost, "/api/disputes/"+id+"/freeze", api.tokens[creatorAddr], nil)

	rec := api.do(t, http.MethodGet, "/api/disputes/"+id+"/history", api.tokens[creatorAddr], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", rec.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.History) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.History))
	}
	if resp.History[1].Actor != creatorAddr {
		t.Fatalf("freeze entry must name the token holder, got %s", resp.History[1].Actor)
	}
}

func TestAPI_LegacyActionEndpoint(t *testing.T) {
	api := newTestAPI(t)
	id := api.createDispute(t)

	rec := api.do(t, http.MethodPost, "/api/actions", api.tokens[creatorAddr], map[string]any{
		"action": "freeze",
		"args":   map[string]any{"dispute_id": id, "actor_address": "ignored"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("action: expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode action response: %v", err)
	}
	if resp["success"] != true || resp["freeze_status"] != true {
		t.Fatalf("unexpected action result: %+v", resp)
	}

	// A caller omitting the actor argument entirely still succeeds: the
	// address comes from the verified token.
	rec = api.do(t, http.MethodPost, "/api/actions", api.tokens[creatorAddr], map[string]any{
		"action": "create",
		"args":   map[string]any{"token_id": "token-action-create"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create action: expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create action response: %v", err)
	}
	if resp["success"] != true {
		t.Fatalf("create without creator_address must use the token address: %+v", resp)
	}
	createdID, _ := resp["dispute_id"].(string)
	if createdID == "" {
		t.Fatalf("missing dispute_id in create result: %+v", resp)
	}

	rec = api.do(t, http.MethodPost, "/api/actions", api.tokens[creatorAddr], map[string]any{
		"action": "get",
		"args":   map[string]any{"dispute_id": createdID},
	})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode get action response: %v", err)
	}
	if resp["creator_address"] != creatorAddr {
		t.Fatalf("expected creator %s from token, got %v", creatorAddr, resp["creator_address"])
	}

	rec = api.do(t, http.MethodPost, "/api/actions", api.tokens[creatorAddr], map[string]any{
		"action": "explode",
		"args":   map[string]any{},
	})
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Fatalf("expected failure for unknown action, got %+v", resp)
	}
}
