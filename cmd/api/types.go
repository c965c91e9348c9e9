package main

import (
	"encoding/json"
	"time"

	"disputeflow/dispute"
)

type errorResponse struct {
	Error string `json:"error"`
}

type partyResponse struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

type createDisputeRequest struct {
	TokenID           string          `json:"token_id"`
	RespondentAddress *string         `json:"respondent_address,omitempty"`
	InfringementData  json.RawMessage `json:"infringement_data,omitempty"`
}

type createDisputeResponse struct {
	DisputeID string `json:"dispute_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type updateStatusRequest struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

type statusResponse struct {
	DisputeID string `json:"dispute_id"`
	Status    string `json:"status"`
	Frozen    bool   `json:"freeze_status"`
	UpdatedAt string `json:"updated_at"`
}

type arbitrationRequest struct {
	Method string         `json:"method"`
	Data   map[string]any `json:"data,omitempty"`
}

type arbitrationResponse struct {
	DisputeID string         `json:"dispute_id"`
	Method    string         `json:"arbitration_method"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Extra     map[string]any `json:"extra,omitempty"`
	Status    string         `json:"status"`
	UpdatedAt string         `json:"updated_at"`
}

type settlementRequest struct {
	Terms map[string]any `json:"terms"`
}

type offerResponse struct {
	DisputeID  string         `json:"dispute_id"`
	Proposer   string         `json:"proposer"`
	Terms      map[string]any `json:"terms"`
	OfferState string         `json:"offer_status"`
	Status     string         `json:"status"`
	UpdatedAt  string         `json:"updated_at"`
}

type settlementResponseRequest struct {
	Accepted bool `json:"accepted"`
}

type settlementResponseResponse struct {
	DisputeID        string `json:"dispute_id"`
	SettlementStatus string `json:"settlement_status"`
	DisputeStatus    string `json:"dispute_status"`
	UpdatedAt        string `json:"updated_at"`
}

type resolutionRequest struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

type rejectionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type resolutionResponse struct {
	DisputeID  string `json:"dispute_id"`
	Type       string `json:"type"`
	Details    string `json:"details"`
	Resolver   string `json:"resolver"`
	ResolvedAt string `json:"resolved_at"`
	Status     string `json:"status"`
}

type actionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

type entryResponse struct {
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	History []entryResponse `json:"history"`
}

type disputeResponse struct {
	DisputeID         string          `json:"dispute_id"`
	CreatorAddress    string          `json:"creator_address"`
	RespondentAddress *string         `json:"respondent_address,omitempty"`
	TokenID           string          `json:"token_id"`
	InfringementData  json.RawMessage `json:"infringement_data,omitempty"`
	Status            string          `json:"status"`
	ArbitrationMethod *string         `json:"arbitration_method,omitempty"`
	Frozen            bool            `json:"freeze_status"`
	History           []entryResponse `json:"history"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

type listDisputesResponse struct {
	Disputes []disputeResponse `json:"disputes"`
}

func toDisputeResponse(d dispute.Dispute) disputeResponse {
	resp := disputeResponse{
		DisputeID:         d.ID,
		CreatorAddress:    d.CreatorAddress,
		RespondentAddress: d.RespondentAddress,
		TokenID:           d.TokenID,
		InfringementData:  d.InfringementData,
		Status:            string(d.Status),
		Frozen:            d.Frozen,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         d.UpdatedAt.Format(time.RFC3339Nano),
	}
	if d.ArbitrationMethod != nil {
		m := string(*d.ArbitrationMethod)
		resp.ArbitrationMethod = &m
	}
	resp.History = make([]entryResponse, 0, len(d.History))
	for _, e := range d.History {
		resp.History = append(resp.History, entryResponse{
			Action:    e.Action,
			Actor:     e.Actor,
			Details:   e.Details,
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return resp
}
