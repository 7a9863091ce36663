package catalog

import "time"

type documentTypeResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ValidityDays int    `json:"validityDays"`
}

type organizationRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

type organizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type requirementItem struct {
	DocumentTypeID string `json:"documentTypeId"`
	DocumentType   string `json:"documentType,omitempty"`
	Mandatory      *bool  `json:"mandatory,omitempty"`
	ValidForDays   int    `json:"validForDays"`
}

type requirementsRequest struct {
	Requirements []requirementItem `json:"requirements"`
}

type requirementsResponse struct {
	OrganizationID   string            `json:"organizationId"`
	OrganizationName string            `json:"organizationName,omitempty"`
	Requirements     []requirementItem `json:"requirements"`
}

func toTypeResponse(t DocumentType) documentTypeResponse {
	return documentTypeResponse{ID: t.ID, Name: t.Name, ValidityDays: t.Validity()}
}

func toOrgResponse(o Organization) organizationResponse {
	return organizationResponse{ID: o.ID, Name: o.Name, Sector: o.Sector, CreatedAt: o.CreatedAt}
}

func toRequirementsResponse(orgID string, reqs []Requirement) requirementsResponse {
	items := make([]requirementItem, 0, len(reqs))
	for _, r := range reqs {
		mandatory := r.Mandatory
		items = append(items, requirementItem{
			DocumentTypeID: r.DocumentTypeID,
			DocumentType:   r.DocumentType,
			Mandatory:      &mandatory,
			ValidForDays:   r.ValidForDays,
		})
	}
	return requirementsResponse{OrganizationID: orgID, Requirements: items}
}
