package catalog

import "time"

// DefaultValidityDays applies when a document type declares no validity.
const DefaultValidityDays = 365

// DocumentType is a kind of document an individual can submit.
type DocumentType struct {
	ID           string
	Name         string
	ValidityDays int
}

// Validity returns the number of days a document of this type stays valid.
func (t DocumentType) Validity() int {
	if t.ValidityDays > 0 {
		return t.ValidityDays
	}
	return DefaultValidityDays
}

// Organization is a party that requests disclosures.
type Organization struct {
	ID        string
	Name      string
	Sector    string
	CreatedAt time.Time
}

// Requirement states that an organization needs a document type.
type Requirement struct {
	OrganizationID string
	DocumentTypeID string
	DocumentType   string
	Mandatory      bool
	ValidForDays   int
}

// OrganizationRequirements groups one organization's requirement set.
type OrganizationRequirements struct {
	Organization Organization
	Requirements []Requirement
}

// DefaultDocumentTypes mirrors the seed migration.
func DefaultDocumentTypes() []DocumentType {
	return []DocumentType{
		{ID: "dt-national-id", Name: "National ID", ValidityDays: 365},
		{ID: "dt-passport", Name: "Passport", ValidityDays: 365},
		{ID: "dt-utility-bill", Name: "Utility Bill", ValidityDays: 90},
		{ID: "dt-drivers-license", Name: "Driver's License", ValidityDays: 365},
		{ID: "dt-birth-certificate", Name: "Birth Certificate", ValidityDays: 3650},
		{ID: "dt-business-registration", Name: "Business Registration Certificate", ValidityDays: 365},
		{ID: "dt-tax-id", Name: "Tax ID (TIN)", ValidityDays: 365},
		{ID: "dt-selfie-with-id", Name: "Selfie with ID", ValidityDays: 365},
	}
}
