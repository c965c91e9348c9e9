package dispute

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a dispute.
type Status string

const (
	StatusPending     Status = "pending"
	StatusArbitration Status = "arbitration"
	StatusSettlement  Status = "settlement"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
)

// Terminal reports whether no further mutation is allowed from this status.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusArbitration, StatusSettlement, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// ArbitrationMethod selects the resolution track for arbitration.
type ArbitrationMethod string

const (
	MethodDaoVoting     ArbitrationMethod = "dao_voting"
	MethodSingleArbiter ArbitrationMethod = "single_arbiter"
	MethodExpertPanel   ArbitrationMethod = "expert_panel"
)

func isValidMethod(m ArbitrationMethod) bool {
	switch m {
	case MethodDaoVoting, MethodSingleArbiter, MethodExpertPanel:
		return true
	}
	return false
}

// OfferStatus tracks the state of a settlement offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// Entry is one immutable audit record. Entries are appended by the engine on
// every state-changing operation and never rewritten.
type Entry struct {
	ID        string
	Action    string
	Actor     string
	Details   string
	Timestamp time.Time
}

// Audit actions recorded by the engine.
const (
	ActionCreated             = "dispute_created"
	ActionStatusUpdated       = "status_updated"
	ActionAssetFrozen         = "asset_frozen"
	ActionAssetUnfrozen       = "asset_unfrozen"
	ActionArbitrationStarted  = "arbitration_initiated"
	ActionSettlementProposed  = "settlement_proposed"
	ActionSettlementResponded = "settlement_response"
	ActionResolved            = "dispute_resolved"
	ActionRejected            = "dispute_rejected"
)

// SettlementOffer is a negotiated resolution proposed by one party.
type SettlementOffer struct {
	Proposer    string
	Terms       map[string]any
	ProposedAt  time.Time
	Status      OfferStatus
	Responder   *string
	RespondedAt *time.Time
}

// ArbitrationData bounds the arbitration decision window. Extra carries
// caller-supplied fields the engine stores but never interprets.
type ArbitrationData struct {
	StartDate time.Time
	EndDate   time.Time
	Extra     map[string]any
}

// Resolution records the final outcome of a dispute.
type Resolution struct {
	Type       string
	Details    string
	Resolver   string
	ResolvedAt time.Time
}

// Dispute is the domain entity tracked by the engine. It carries no JSON
// annotations so it can be reused by different presentation layers.
type Dispute struct {
	ID                string
	CreatorAddress    string
	RespondentAddress *string
	TokenID           string

	// InfringementData is the detector payload supplied at creation,
	// stored verbatim and never interpreted here.
	InfringementData json.RawMessage

	Status            Status
	ArbitrationMethod *ArbitrationMethod
	Arbitration       *ArbitrationData
	SettlementOffer   *SettlementOffer
	Resolution        *Resolution
	Frozen            bool

	History []Entry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Party reports whether addr is the creator or the respondent of the dispute.
func (d Dispute) Party(addr string) bool {
	if d.CreatorAddress == addr {
		return true
	}
	return d.RespondentAddress != nil && *d.RespondentAddress == addr
}
