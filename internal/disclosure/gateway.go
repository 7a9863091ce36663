package disclosure

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/metrics"
)

// Deny reasons. Callers only ever see a denial; the reason is for audit.
const (
	ReasonGranted           = "granted"
	ReasonDocumentNotFound  = "document_not_found"
	ReasonNoGrant           = "no_grant"
	ReasonInsufficientLevel = "insufficient_level"
	ReasonRequestInactive   = "request_inactive"
)

// AccessDecision is the outcome of one authorization check.
type AccessDecision struct {
	Allowed   bool
	Reason    string
	RequestID string
	Level     AccessLevel
}

// Gateway decides whether an organization may act on a document. Every call
// reads the store; nothing is cached, so revocations apply immediately.
type Gateway struct {
	Store  Store
	Docs   DocumentLookup
	Audit  audit.Recorder
	Logger *slog.Logger
	Now    func() time.Time
}

func NewGateway(store Store, docs DocumentLookup, rec audit.Recorder, logger *slog.Logger) *Gateway {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{Store: store, Docs: docs, Audit: rec, Logger: logger, Now: time.Now}
}

func (g *Gateway) Authorize(ctx context.Context, orgID, documentID string, op Operation) (AccessDecision, error) {
	if !ValidOperation(op) {
		return AccessDecision{}, apperr.Validation("unknown operation " + string(op))
	}
	dec, err := g.decide(ctx, orgID, documentID, op)
	if err != nil {
		return AccessDecision{}, err
	}

	outcome, action := "allow", audit.ActionAccessAllowed
	if !dec.Allowed {
		outcome, action = "deny", audit.ActionAccessDenied
	}
	metrics.AccessDecisionsTotal.WithLabelValues(string(op), outcome, dec.Reason).Inc()
	g.Audit.Record(ctx, audit.Event{
		ActorID:    orgID,
		Action:     action,
		TargetType: "document",
		TargetID:   documentID,
		Detail:     string(op) + ":" + dec.Reason,
		Outcome:    outcome,
	})
	g.Logger.Debug("access decision",
		"organization_id", orgID,
		"document_id", documentID,
		"operation", op,
		"outcome", outcome,
		"reason", dec.Reason,
	)
	return dec, nil
}

func (g *Gateway) decide(ctx context.Context, orgID, documentID string, op Operation) (AccessDecision, error) {
	doc, err := g.Docs.Find(ctx, documentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return AccessDecision{Reason: ReasonDocumentNotFound}, nil
		}
		return AccessDecision{}, err
	}

	grants, err := g.Store.AccessGrants(ctx, orgID, documentID)
	if err != nil {
		return AccessDecision{}, err
	}

	now := g.Now()
	reason := ReasonNoGrant
	for _, gr := range grants {
		if gr.OwnerID != doc.OwnerID {
			continue
		}
		if !gr.Active(now) {
			if reason == ReasonNoGrant {
				reason = ReasonRequestInactive
			}
			continue
		}
		if gr.Level.Permits(op) {
			return AccessDecision{Allowed: true, Reason: ReasonGranted, RequestID: gr.RequestID, Level: gr.Level}, nil
		}
		reason = ReasonInsufficientLevel
	}
	return AccessDecision{Reason: reason}, nil
}
