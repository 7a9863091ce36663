package disclosure

import "time"

type createRequest struct {
	OwnerID    string     `json:"ownerId"`
	Purpose    string     `json:"purpose"`
	ValidUntil *time.Time `json:"validUntil"`
}

type grantItem struct {
	DocumentID  string `json:"documentId"`
	AccessLevel string `json:"accessLevel"`
}

// decisionRequest keeps grants as a pointer so a missing list and an empty
// list stay distinguishable.
type decisionRequest struct {
	Decision string       `json:"decision"`
	Grants   *[]grantItem `json:"grants"`
}

type requestResponse struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	OwnerID        string     `json:"ownerId"`
	Purpose        string     `json:"purpose"`
	Status         Status     `json:"status"`
	Active         bool       `json:"active"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
	DecidedAt      *time.Time `json:"decidedAt,omitempty"`
	DecidedBy      string     `json:"decidedBy,omitempty"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
}

type grantResponse struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"documentId"`
	AccessLevel AccessLevel `json:"accessLevel"`
	GrantedAt   time.Time   `json:"grantedAt"`
}

type detailResponse struct {
	requestResponse
	Grants []grantResponse `json:"grants"`
}

type complianceResponse struct {
	RequestID string           `json:"requestId"`
	Items     []ComplianceItem `json:"items"`
}

type orgComplianceResponse struct {
	Items                  []complianceResponse `json:"items"`
	Count                  int                  `json:"count"`
	TotalDocumentsAccessed int                  `json:"totalDocumentsAccessed"`
}

func (in decisionRequest) toInput() DecideInput {
	out := DecideInput{Decision: Decision(in.Decision)}
	if in.Grants != nil {
		out.Grants = make([]GrantInput, 0, len(*in.Grants))
		for _, g := range *in.Grants {
			out.Grants = append(out.Grants, GrantInput{DocumentID: g.DocumentID, Level: AccessLevel(g.AccessLevel)})
		}
	}
	return out
}

func toRequestResponse(r Request, now time.Time) requestResponse {
	return requestResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		OwnerID:        r.OwnerID,
		Purpose:        r.Purpose,
		Status:         r.Status,
		Active:         r.Active(now),
		RequestedAt:    r.RequestedAt,
		ValidUntil:     r.ValidUntil,
		DecidedAt:      r.DecidedAt,
		DecidedBy:      r.DecidedBy,
		RevokedAt:      r.RevokedAt,
	}
}

func toGrantResponses(grants []Grant) []grantResponse {
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{ID: g.ID, DocumentID: g.DocumentID, AccessLevel: g.Level, GrantedAt: g.GrantedAt})
	}
	return out
}
