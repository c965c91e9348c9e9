package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"disputeflow/auth"
	"disputeflow/dispute"
	"disputeflow/facade"
)

// Server wires the typed dispute operations onto HTTP. The legacy action
// dispatch is exposed on a single /api/actions endpoint for callers that
// still speak the generic command shape.
type Server struct {
	engine      *dispute.Engine
	authService *auth.Service
	dispatcher  *facade.Facade
}

// NewServer builds a Server over the engine and auth service.
func NewServer(engine *dispute.Engine, authService *auth.Service) *Server {
	return &Server{
		engine:      engine,
		authService: authService,
		dispatcher:  facade.New(engine),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("POST /api/disputes", s.authed(s.handleCreateDispute))
	mux.HandleFunc("GET /api/disputes", s.authed(s.handleListDisputes))
	mux.HandleFunc("GET /api/disputes/{id}", s.authed(s.handleGetDispute))
	mux.HandleFunc("GET /api/disputes/{id}/history", s.authed(s.handleHistory))
	mux.HandleFunc("POST /api/disputes/{id}/status", s.authed(s.handleUpdateStatus))
	mux.HandleFunc("POST /api/disputes/{id}/freeze", s.authed(s.handleFreeze))
	mux.HandleFunc("POST /api/disputes/{id}/unfreeze", s.authed(s.handleUnfreeze))
	mux.HandleFunc("POST /api/disputes/{id}/arbitration", s.authed(s.handleArbitration))
	mux.HandleFunc("POST /api/disputes/{id}/settlement", s.authed(s.handleProposeSettlement))
	mux.HandleFunc("POST /api/disputes/{id}/settlement/response", s.authed(s.handleSettlementResponse))
	mux.HandleFunc("POST /api/disputes/{id}/resolution", s.authed(s.handleResolve))
	mux.HandleFunc("POST /api/disputes/{id}/rejection", s.authed(s.handleReject))

	mux.HandleFunc("POST /api/actions", s.authed(s.handleAction))

	return mux
}

// authed verifies the bearer token and passes the acting address through.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, actor string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		address, _, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, address)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	party, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateAddress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			serverError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, partyResponse{
		ID:          party.ID,
		Address:     party.Address,
		DisplayName: party.DisplayName,
		Role:        string(party.Role),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:   result.Token,
		Address: result.Party.Address,
		Role:    string(result.Party.Role),
	})
}

func (s *Server) handleCreateDispute(w http.ResponseWriter, r *http.Request, actor string) {
	var req createDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	res, err := s.engine.CreateDispute(r.Context(), actor, req.TokenID, req.InfringementData, req.RespondentAddress)
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDisputeResponse{
		DisputeID: res.DisputeID,
		Status:    string(res.Status),
		CreatedAt: res.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request, _ string) {
	disputes, err := s.engine.ActiveDisputes(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		serverError(w, err)
		return
	}

	out := make([]disputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, toDisputeResponse(d))
	}
	writeJSON(w, http.StatusOK, listDisputesResponse{Disputes: out})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request, _ string) {
	d, err := s.engine.GetDispute(r.Context(), r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, _ string) {
	history, err := s.engine.History(r.Context(), r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}

	out := make([]entryResponse, 0, len(history))
	for _, e := range history {
		out = append(out, entryResponse{
			Action:    e.Action,
			Actor:     e.Actor,
			Details:   e.Details,
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{History: out})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, actor string) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.engine.UpdateStatus(r.Context(), r.PathValue("id"), dispute.Status(req.Status), actor, req.Details)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		DisputeID: res.DisputeID,
		Status:    string(res.Status),
		Frozen:    res.Frozen,
		UpdatedAt: res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request, actor string) {
	res, err := s.engine.FreezeAsset(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		DisputeID: res.DisputeID,
		Status:    string(res.Status),
		Frozen:    res.Frozen,
		UpdatedAt: res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request, actor string) {
	res, err := s.engine.UnfreezeAsset(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		DisputeID: res.DisputeID,
		Status:    string(res.Status),
		Frozen:    res.Frozen,
		UpdatedAt: res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleArbitration(w http.ResponseWriter, r *http.Request, actor string) {
	var req arbitrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.engine.InitiateArbitration(r.Context(), r.PathValue("id"), dispute.ArbitrationMethod(req.Method), actor, req.Data)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arbitrationResponse{
		DisputeID: res.DisputeID,
		Method:    string(res.Method),
		StartDate: res.Arbitration.StartDate.Format(time.RFC3339Nano),
		EndDate:   res.Arbitration.EndDate.Format(time.RFC3339Nano),
		Extra:     res.Arbitration.Extra,
		Status:    string(res.Status),
		UpdatedAt: res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleProposeSettlement(w http.ResponseWriter, r *http.Request, actor string) {
	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.engine.ProposeSettlement(r.Context(), r.PathValue("id"), actor, req.Terms)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offerResponse{
		DisputeID:  res.DisputeID,
		Proposer:   res.Offer.Proposer,
		Terms:      res.Offer.Terms,
		OfferState: string(res.Offer.Status),
		Status:     string(res.Status),
		UpdatedAt:  res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleSettlementResponse(w http.ResponseWriter, r *http.Request, actor string) {
	var req settlementResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.engine.RespondToSettlement(r.Context(), r.PathValue("id"), actor, req.Accepted)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponseResponse{
		DisputeID:        res.DisputeID,
		SettlementStatus: string(res.OfferStatus),
		DisputeStatus:    string(res.DisputeStatus),
		UpdatedAt:        res.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, actor string) {
	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	res, err := s.engine.ResolveDispute(r.Context(), r.PathValue("id"), actor, req.Type, req.Details)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionResponse{
		DisputeID:  res.DisputeID,
		Type:       res.Resolution.Type,
		Details:    res.Resolution.Details,
		Resolver:   res.Resolution.Resolver,
		ResolvedAt: res.Resolution.ResolvedAt.Format(time.RFC3339Nano),
		Status:     string(res.Status),
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, actor string) {
	var req rejectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.engine.RejectDispute(r.Context(), r.PathValue("id"), actor, req.Reason)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionResponse{
		DisputeID:  res.DisputeID,
		Type:       res.Resolution.Type,
		Details:    res.Resolution.Details,
		Resolver:   res.Resolution.Resolver,
		ResolvedAt: res.Resolution.ResolvedAt.Format(time.RFC3339Nano),
		Status:     string(res.Status),
	})
}

// actionActorKeys names the argument each action reads the acting address
// from, so handleAction can fill it from the verified token.
var actionActorKeys = map[string]string{
	facade.ActionCreate:            "creator_address",
	facade.ActionUpdateStatus:      "actor_address",
	facade.ActionFreeze:            "actor_address",
	facade.ActionUnfreeze:          "actor_address",
	facade.ActionArbitrate:         "actor_address",
	facade.ActionProposeSettlement: "proposer_address",
	facade.ActionRespondSettlement: "responder_address",
	facade.ActionResolve:           "resolver_address",
	facade.ActionReject:            "actor_address",
}

// handleAction proxies the legacy generic command shape to the facade. The
// acting address comes from the token, never from the argument bag: it is
// injected whether or not the caller supplied one.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, actor string) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Args == nil {
		req.Args = make(map[string]any)
	}
	if key, ok := actionActorKeys[req.Action]; ok {
		req.Args[key] = actor
	}

	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(r.Context(), req.Action, req.Args))
}

func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispute.ErrNotFound):
		writeError(w, http.StatusNotFound, "dispute not found")
	case errors.Is(err, dispute.ErrNoOffer), errors.Is(err, dispute.ErrTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispute.ErrInvalidStatus), errors.Is(err, dispute.ErrInvalidMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		serverError(w, err)
	}
}

func serverError(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
