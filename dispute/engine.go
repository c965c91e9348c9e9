package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"disputeflow/registry"
)

var (
	// ErrNoOffer signals a settlement response with no offer on the table.
	ErrNoOffer = errors.New("dispute: no settlement offer")
	// ErrTerminal signals a mutating operation on a resolved or rejected dispute.
	ErrTerminal = errors.New("dispute: dispute is in a terminal status")
	// ErrInvalidStatus signals a status value outside the closed enum.
	ErrInvalidStatus = errors.New("dispute: invalid status")
	// ErrInvalidMethod signals an arbitration method outside the closed enum.
	ErrInvalidMethod = errors.New("dispute: invalid arbitration method")
)

// Config carries the process-wide dispute settings, read once at start.
type Config struct {
	// ArbitrationPeriod bounds every arbitration window.
	ArbitrationPeriod time.Duration
	// DaoVotingThreshold is the majority fraction required when the
	// dao_voting method is chosen. Recorded in the arbitration data so the
	// voting collaborator and auditors see the threshold in force at
	// initiation time.
	DaoVotingThreshold float64
}

// Engine is the only writer of disputes. It enforces transition legality,
// serializes mutations per dispute, and couples every mutation with exactly
// one audit entry (resolution of a frozen dispute appends a second entry for
// the cascading unfreeze).
type Engine struct {
	store    Store
	metadata registry.MetadataClient
	cfg      Config

	locks keyedMutex

	idGenerator func() string
	now         func() time.Time
}

// NewEngine builds an Engine over the given store. metadata may be nil; it is
// used only to enrich audit details and never gates a mutation.
func NewEngine(store Store, metadata registry.MetadataClient, cfg Config) *Engine {
	if cfg.ArbitrationPeriod <= 0 {
		cfg.ArbitrationPeriod = 7 * 24 * time.Hour
	}
	return &Engine{
		store:       store,
		metadata:    metadata,
		cfg:         cfg,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// CreateResult is returned by CreateDispute.
type CreateResult struct {
	DisputeID string
	Status    Status
	CreatedAt time.Time
}

// StatusResult is returned by operations that change one scalar field.
type StatusResult struct {
	DisputeID string
	Status    Status
	Frozen    bool
	UpdatedAt time.Time
}

// ArbitrationResult is returned by InitiateArbitration.
type ArbitrationResult struct {
	DisputeID   string
	Method      ArbitrationMethod
	Arbitration ArbitrationData
	Status      Status
	UpdatedAt   time.Time
}

// OfferResult is returned by ProposeSettlement.
type OfferResult struct {
	DisputeID string
	Offer     SettlementOffer
	Status    Status
	UpdatedAt time.Time
}

// ResponseResult is returned by RespondToSettlement.
type ResponseResult struct {
	DisputeID     string
	OfferStatus   OfferStatus
	DisputeStatus Status
	UpdatedAt     time.Time
}

// ResolutionResult is returned by ResolveDispute and RejectDispute.
type ResolutionResult struct {
	DisputeID  string
	Resolution Resolution
	Status     Status
	UpdatedAt  time.Time
}

// CreateDispute allocates a new dispute in pending status with a single
// creation audit entry. infringement is the detector payload, stored verbatim.
func (e *Engine) CreateDispute(ctx context.Context, creator, tokenID string, infringement json.RawMessage, respondent *string) (CreateResult, error) {
	if creator == "" {
		return CreateResult{}, fmt.Errorf("dispute: missing creator address")
	}
	if tokenID == "" {
		return CreateResult{}, fmt.Errorf("dispute: missing token id")
	}

	now := e.now()
	id := fmt.Sprintf("dispute_%s_%d_%s", tokenID, now.Unix(), shortID(e.idGenerator()))

	details := "Dispute created based on infringement detection"
	if name := e.tokenName(ctx, tokenID); name != "" {
		details = fmt.Sprintf("Dispute created based on infringement detection against %q", name)
	}

	d := Dispute{
		ID:                id,
		CreatorAddress:    creator,
		RespondentAddress: respondent,
		TokenID:           tokenID,
		InfringementData:  infringement,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		History: []Entry{{
			ID:        e.idGenerator(),
			Action:    ActionCreated,
			Actor:     creator,
			Details:   details,
			Timestamp: now,
		}},
	}

	if err := e.store.Insert(ctx, d); err != nil {
		return CreateResult{}, fmt.Errorf("dispute: create: %w", err)
	}

	return CreateResult{DisputeID: id, Status: StatusPending, CreatedAt: now}, nil
}

// GetDispute returns the full dispute or ErrNotFound.
func (e *Engine) GetDispute(ctx context.Context, id string) (Dispute, error) {
	return e.store.Get(ctx, id)
}

// UpdateStatus sets the status directly. It exists for administrative
// corrections; the dedicated operations below are the normal transitions.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status Status, actor, details string) (StatusResult, error) {
	if !isValidStatus(status) {
		return StatusResult{}, ErrInvalidStatus
	}
	if details == "" {
		details = fmt.Sprintf("Status updated to %s", status)
	}

	var res StatusResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		d.Status = status
		res = StatusResult{DisputeID: d.ID, Status: status, Frozen: d.Frozen, UpdatedAt: now}
		return []Entry{e.entry(ActionStatusUpdated, actor, details, now)}, nil
	})
	return res, err
}

// FreezeAsset places a hold on the disputed asset.
func (e *Engine) FreezeAsset(ctx context.Context, id, actor string) (StatusResult, error) {
	var res StatusResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		d.Frozen = true
		res = StatusResult{DisputeID: d.ID, Status: d.Status, Frozen: true, UpdatedAt: now}
		return []Entry{e.entry(ActionAssetFrozen, actor, "Asset frozen during dispute resolution", now)}, nil
	})
	return res, err
}

// UnfreezeAsset releases the hold on the disputed asset.
func (e *Engine) UnfreezeAsset(ctx context.Context, id, actor string) (StatusResult, error) {
	var res StatusResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		d.Frozen = false
		res = StatusResult{DisputeID: d.ID, Status: d.Status, Frozen: false, UpdatedAt: now}
		return []Entry{e.entry(ActionAssetUnfrozen, actor, "Asset unfrozen after dispute resolution", now)}, nil
	})
	return res, err
}

// InitiateArbitration moves the dispute onto the arbitration track and bounds
// the decision window by the configured arbitration period.
func (e *Engine) InitiateArbitration(ctx context.Context, id string, method ArbitrationMethod, actor string, extra map[string]any) (ArbitrationResult, error) {
	if !isValidMethod(method) {
		return ArbitrationResult{}, ErrInvalidMethod
	}

	var res ArbitrationResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		data := ArbitrationData{
			StartDate: now,
			EndDate:   now.Add(e.cfg.ArbitrationPeriod),
			Extra:     cloneMap(extra),
		}
		if method == MethodDaoVoting && e.cfg.DaoVotingThreshold > 0 {
			if data.Extra == nil {
				data.Extra = make(map[string]any, 1)
			}
			data.Extra["required_majority"] = e.cfg.DaoVotingThreshold
		}

		m := method
		d.ArbitrationMethod = &m
		d.Arbitration = &data
		d.Status = StatusArbitration

		res = ArbitrationResult{DisputeID: d.ID, Method: method, Arbitration: data, Status: StatusArbitration, UpdatedAt: now}
		details := fmt.Sprintf("Arbitration initiated using %s method", method)
		return []Entry{e.entry(ActionArbitrationStarted, actor, details, now)}, nil
	})
	return res, err
}

// ProposeSettlement puts a settlement offer on the table and moves the
// dispute to the settlement track. A new offer replaces any earlier one.
func (e *Engine) ProposeSettlement(ctx context.Context, id, proposer string, terms map[string]any) (OfferResult, error) {
	var res OfferResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		offer := SettlementOffer{
			Proposer:   proposer,
			Terms:      cloneMap(terms),
			ProposedAt: now,
			Status:     OfferPending,
		}
		d.SettlementOffer = &offer
		d.Status = StatusSettlement

		res = OfferResult{DisputeID: d.ID, Offer: offer, Status: StatusSettlement, UpdatedAt: now}
		return []Entry{e.entry(ActionSettlementProposed, proposer, "Settlement proposed", now)}, nil
	})
	return res, err
}

// RespondToSettlement accepts or rejects the pending offer. Acceptance
// resolves the dispute with a settlement resolution; rejection falls the
// dispute back to arbitration when a method was previously set, else to
// pending.
func (e *Engine) RespondToSettlement(ctx context.Context, id, responder string, accepted bool) (ResponseResult, error) {
	var res ResponseResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		if d.SettlementOffer == nil {
			return nil, ErrNoOffer
		}

		offer := d.SettlementOffer
		offer.Responder = &responder
		offer.RespondedAt = &now

		var detail string
		if accepted {
			offer.Status = OfferAccepted
			d.Status = StatusResolved
			d.Resolution = &Resolution{
				Type:       "settlement",
				Details:    termsSummary(offer.Terms),
				Resolver:   responder,
				ResolvedAt: now,
			}
			detail = "Settlement accepted"
		} else {
			offer.Status = OfferRejected
			if d.ArbitrationMethod != nil {
				d.Status = StatusArbitration
			} else {
				d.Status = StatusPending
			}
			detail = "Settlement rejected"
		}

		res = ResponseResult{DisputeID: d.ID, OfferStatus: offer.Status, DisputeStatus: d.Status, UpdatedAt: now}
		return []Entry{e.entry(ActionSettlementResponded, responder, detail, now)}, nil
	})
	return res, err
}

// ResolveDispute records a final outcome directly, covering arbiter, DAO, and
// panel decisions. A frozen asset is unfrozen in the same operation with its
// own audit entry.
func (e *Engine) ResolveDispute(ctx context.Context, id, resolver, resolutionType, details string) (ResolutionResult, error) {
	return e.finalize(ctx, id, resolver, resolutionType, details, StatusResolved,
		ActionResolved, fmt.Sprintf("Dispute resolved via %s", resolutionType))
}

// RejectDispute dismisses the dispute without a finding of infringement. It
// is terminal, symmetric to ResolveDispute, and likewise unfreezes the asset.
func (e *Engine) RejectDispute(ctx context.Context, id, actor, reason string) (ResolutionResult, error) {
	return e.finalize(ctx, id, actor, "rejection", reason, StatusRejected,
		ActionRejected, "Dispute rejected")
}

func (e *Engine) finalize(ctx context.Context, id, actor, resolutionType, details string, status Status, action, auditDetail string) (ResolutionResult, error) {
	var res ResolutionResult
	err := e.mutate(ctx, id, func(d *Dispute, now time.Time) ([]Entry, error) {
		d.Resolution = &Resolution{
			Type:       resolutionType,
			Details:    details,
			Resolver:   actor,
			ResolvedAt: now,
		}
		d.Status = status

		entries := []Entry{e.entry(action, actor, auditDetail, now)}
		if d.Frozen {
			d.Frozen = false
			entries = append(entries, e.entry(ActionAssetUnfrozen, actor, "Asset unfrozen after dispute resolution", e.now()))
		}

		res = ResolutionResult{DisputeID: d.ID, Resolution: *d.Resolution, Status: status, UpdatedAt: now}
		return entries, nil
	})
	return res, err
}

// ActiveDisputes lists non-terminal disputes, optionally filtered to those
// involving addr.
func (e *Engine) ActiveDisputes(ctx context.Context, addr string) ([]Dispute, error) {
	return e.store.ListActive(ctx, addr)
}

// History returns the ordered audit log for a dispute.
func (e *Engine) History(ctx context.Context, id string) ([]Entry, error) {
	return e.store.History(ctx, id)
}

// mutate serializes the read-modify-write for one dispute. fn receives the
// dispute and the operation timestamp and returns the audit entries to
// append; returning an error leaves the stored dispute untouched.
func (e *Engine) mutate(ctx context.Context, id string, fn func(d *Dispute, now time.Time) ([]Entry, error)) error {
	if id == "" {
		return ErrNotFound
	}

	unlock := e.locks.lock(id)
	defer unlock()

	d, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status.Terminal() {
		return ErrTerminal
	}

	now := e.now()
	entries, err := fn(&d, now)
	if err != nil {
		return err
	}

	d.UpdatedAt = now
	d.History = append(d.History, entries...)

	if err := e.store.Update(ctx, d, entries); err != nil {
		return fmt.Errorf("dispute: update %s: %w", id, err)
	}
	return nil
}

func (e *Engine) entry(action, actor, details string, ts time.Time) Entry {
	return Entry{
		ID:        e.idGenerator(),
		Action:    action,
		Actor:     actor,
		Details:   details,
		Timestamp: ts,
	}
}

// tokenName fetches the asset name for audit enrichment. Failures are
// swallowed: metadata is never required input for a mutation.
func (e *Engine) tokenName(ctx context.Context, tokenID string) string {
	if e.metadata == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	md, err := e.metadata.TokenMetadata(ctx, tokenID)
	if err != nil {
		return ""
	}
	return md.Name
}

func termsSummary(terms map[string]any) string {
	if len(terms) == 0 {
		return "settlement accepted"
	}
	b, err := json.Marshal(terms)
	if err != nil {
		return "settlement accepted"
	}
	return string(b)
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// keyedMutex provides per-dispute mutual exclusion. Locks are retained for
// the process lifetime, matching the store which never deletes disputes.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
