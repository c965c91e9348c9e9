// Package facade retains the legacy action-tag dispatch surface over the
// typed dispute engine. New callers should use the engine (or the HTTP API)
// directly; this adapter exists for transports that need a single generic
// command entry point. Enum strings are normalized here, never inside the
// engine.
package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"disputeflow/dispute"
)

// ErrUnknownAction signals an unrecognized action tag.
var ErrUnknownAction = errors.New("facade: unknown action")

// Actions accepted by Dispatch.
const (
	ActionCreate            = "create"
	ActionGet               = "get"
	ActionUpdateStatus      = "update_status"
	ActionFreeze            = "freeze"
	ActionUnfreeze          = "unfreeze"
	ActionArbitrate         = "arbitrate"
	ActionProposeSettlement = "propose_settlement"
	ActionRespondSettlement = "respond_to_settlement"
	ActionResolve           = "resolve"
	ActionReject            = "reject"
	ActionGetActive         = "get_active"
	ActionGetHistory        = "get_history"
)

// Facade adapts named-argument bags to engine calls.
type Facade struct {
	engine *dispute.Engine
}

// New builds a Facade over the engine.
func New(engine *dispute.Engine) *Facade {
	return &Facade{engine: engine}
}

// Dispatch executes one action and folds every outcome, including errors,
// into the legacy {"success": ...} result shape.
func (f *Facade) Dispatch(ctx context.Context, action string, args map[string]any) map[string]any {
	result, err := f.dispatch(ctx, action, args)
	if err != nil {
		return failure(err)
	}
	return result
}

func (f *Facade) dispatch(ctx context.Context, action string, args map[string]any) (map[string]any, error) {
	switch action {
	case ActionCreate:
		return f.create(ctx, args)
	case ActionGet:
		return f.get(ctx, args)
	case ActionUpdateStatus:
		return f.updateStatus(ctx, args)
	case ActionFreeze:
		return f.setFreeze(ctx, args, true)
	case ActionUnfreeze:
		return f.setFreeze(ctx, args, false)
	case ActionArbitrate:
		return f.arbitrate(ctx, args)
	case ActionProposeSettlement:
		return f.proposeSettlement(ctx, args)
	case ActionRespondSettlement:
		return f.respondToSettlement(ctx, args)
	case ActionResolve:
		return f.resolve(ctx, args)
	case ActionReject:
		return f.reject(ctx, args)
	case ActionGetActive:
		return f.getActive(ctx, args)
	case ActionGetHistory:
		return f.getHistory(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (f *Facade) create(ctx context.Context, args map[string]any) (map[string]any, error) {
	creator, err := stringArg(args, "creator_address")
	if err != nil {
		return nil, err
	}
	tokenID, err := stringArg(args, "token_id")
	if err != nil {
		return nil, err
	}

	var infringement json.RawMessage
	if raw, ok := args["infringement_data"]; ok && raw != nil {
		infringement, err = json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("facade: encode infringement_data: %w", err)
		}
	}

	res, err := f.engine.CreateDispute(ctx, creator, tokenID, infringement, optStringArg(args, "respondent_address"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"dispute_id": res.DisputeID,
		"status":     string(res.Status),
		"created_at": res.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) get(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	d, err := f.engine.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	return disputeDoc(d), nil
}

func (f *Facade) updateStatus(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	status, err := stringArg(args, "status")
	if err != nil {
		return nil, err
	}
	actor, err := stringArg(args, "actor_address")
	if err != nil {
		return nil, err
	}

	var details string
	if v := optStringArg(args, "details"); v != nil {
		details = *v
	}

	res, err := f.engine.UpdateStatus(ctx, id, dispute.Status(status), actor, details)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"dispute_id": res.DisputeID,
		"status":     string(res.Status),
		"updated_at": res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) setFreeze(ctx context.Context, args map[string]any, freeze bool) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	actor, err := stringArg(args, "actor_address")
	if err != nil {
		return nil, err
	}

	var res dispute.StatusResult
	if freeze {
		res, err = f.engine.FreezeAsset(ctx, id, actor)
	} else {
		res, err = f.engine.UnfreezeAsset(ctx, id, actor)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":       true,
		"dispute_id":    res.DisputeID,
		"freeze_status": res.Frozen,
		"updated_at":    res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) arbitrate(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	method, err := stringArg(args, "method")
	if err != nil {
		return nil, err
	}
	actor, err := stringArg(args, "actor_address")
	if err != nil {
		return nil, err
	}

	res, err := f.engine.InitiateArbitration(ctx, id, dispute.ArbitrationMethod(method), actor, mapArg(args, "arbitration_data"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":            true,
		"dispute_id":         res.DisputeID,
		"arbitration_method": string(res.Method),
		"arbitration_data":   arbitrationDoc(res.Arbitration),
		"status":             string(res.Status),
		"updated_at":         res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) proposeSettlement(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	proposer, err := stringArg(args, "proposer_address")
	if err != nil {
		return nil, err
	}

	res, err := f.engine.ProposeSettlement(ctx, id, proposer, mapArg(args, "settlement_terms"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":          true,
		"dispute_id":       res.DisputeID,
		"settlement_offer": offerDoc(res.Offer),
		"status":           string(res.Status),
		"updated_at":       res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) respondToSettlement(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	responder, err := stringArg(args, "responder_address")
	if err != nil {
		return nil, err
	}
	accepted, ok := args["accepted"].(bool)
	if !ok {
		return nil, fmt.Errorf("facade: missing or invalid argument %q", "accepted")
	}

	res, err := f.engine.RespondToSettlement(ctx, id, responder, accepted)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":           true,
		"dispute_id":        res.DisputeID,
		"settlement_status": string(res.OfferStatus),
		"dispute_status":    string(res.DisputeStatus),
		"updated_at":        res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) resolve(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	resolver, err := stringArg(args, "resolver_address")
	if err != nil {
		return nil, err
	}
	resolutionType, err := stringArg(args, "resolution_type")
	if err != nil {
		return nil, err
	}

	var details string
	if v := optStringArg(args, "resolution_details"); v != nil {
		details = *v
	}

	res, err := f.engine.ResolveDispute(ctx, id, resolver, resolutionType, details)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"dispute_id": res.DisputeID,
		"resolution": resolutionDoc(res.Resolution),
		"status":     string(res.Status),
		"updated_at": res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) reject(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	actor, err := stringArg(args, "actor_address")
	if err != nil {
		return nil, err
	}

	var reason string
	if v := optStringArg(args, "reason"); v != nil {
		reason = *v
	}

	res, err := f.engine.RejectDispute(ctx, id, actor, reason)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"dispute_id": res.DisputeID,
		"resolution": resolutionDoc(res.Resolution),
		"status":     string(res.Status),
		"updated_at": res.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (f *Facade) getActive(ctx context.Context, args map[string]any) (map[string]any, error) {
	var addr string
	if v := optStringArg(args, "address"); v != nil {
		addr = *v
	}

	disputes, err := f.engine.ActiveDisputes(ctx, addr)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, disputeDoc(d))
	}
	return map[string]any{"success": true, "disputes": out}, nil
}

func (f *Facade) getHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := stringArg(args, "dispute_id")
	if err != nil {
		return nil, err
	}
	history, err := f.engine.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "history": historyDoc(history)}, nil
}

func failure(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("facade: missing or invalid argument %q", key)
	}
	return v, nil
}

func optStringArg(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func mapArg(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

func disputeDoc(d dispute.Dispute) map[string]any {
	doc := map[string]any{
		"success":         true,
		"dispute_id":      d.ID,
		"creator_address": d.CreatorAddress,
		"token_id":        d.TokenID,
		"status":          string(d.Status),
		"freeze_status":   d.Frozen,
		"created_at":      d.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      d.UpdatedAt.Format(time.RFC3339Nano),
		"history":         historyDoc(d.History),
	}
	if d.RespondentAddress != nil {
		doc["respondent_address"] = *d.RespondentAddress
	}
	if len(d.InfringementData) > 0 {
		doc["infringement_data"] = json.RawMessage(d.InfringementData)
	}
	if d.ArbitrationMethod != nil {
		doc["arbitration_method"] = string(*d.ArbitrationMethod)
	}
	if d.Arbitration != nil {
		doc["arbitration_data"] = arbitrationDoc(*d.Arbitration)
	}
	if d.SettlementOffer != nil {
		doc["settlement_offer"] = offerDoc(*d.SettlementOffer)
	}
	if d.Resolution != nil {
		doc["resolution"] = resolutionDoc(*d.Resolution)
	}
	return doc
}

func historyDoc(entries []dispute.Entry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"action":    e.Action,
			"actor":     e.Actor,
			"details":   e.Details,
			"timestamp": e.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return out
}

func arbitrationDoc(a dispute.ArbitrationData) map[string]any {
	doc := map[string]any{
		"start_date": a.StartDate.Format(time.RFC3339Nano),
		"end_date":   a.EndDate.Format(time.RFC3339Nano),
	}
	for k, v := range a.Extra {
		doc[k] = v
	}
	return doc
}

func offerDoc(o dispute.SettlementOffer) map[string]any {
	doc := map[string]any{
		"proposer":    o.Proposer,
		"terms":       o.Terms,
		"proposed_at": o.ProposedAt.Format(time.RFC3339Nano),
		"status":      string(o.Status),
	}
	if o.Responder != nil {
		doc["responder"] = *o.Responder
	}
	if o.RespondedAt != nil {
		doc["responded_at"] = o.RespondedAt.Format(time.RFC3339Nano)
	}
	return doc
}

func resolutionDoc(r dispute.Resolution) map[string]any {
	return map[string]any{
		"type":        r.Type,
		"details":     r.Details,
		"resolver":    r.Resolver,
		"resolved_at": r.ResolvedAt.Format(time.RFC3339Nano),
	}
}
