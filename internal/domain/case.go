package domain

import "time"

// CaseFields is the partial legacy payload for a case. All reference fields
// are raw legacy numeric IDs, not shadow-database UUIDs.
type CaseFields struct {
	ConstituentExternalID *int64
	CaseTypeID            *int64
	StatusID              *int64
	CategoryTypeID        *int64
	ContactTypeID         *int64
	AssignedToID          *int64
	Summary               *string
	ReviewDate            *time.Time
}

// Case is an office-scoped shadow record of a legacy case. ID is assigned
// by the shadow store on first save and is empty until persisted. OfficeID
// and ExternalID are immutable after construction.
type Case struct {
	ID         string
	OfficeID   OfficeID
	ExternalID ExternalID

	ConstituentExternalID *int64
	CaseTypeID            *int64
	StatusID              *int64
	CategoryTypeID        *int64
	ContactTypeID         *int64
	AssignedToID          *int64
	Summary               *string
	ReviewDate            *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCaseFromLegacy constructs a brand-new case from a legacy snapshot.
func NewCaseFromLegacy(office OfficeID, externalID ExternalID, f CaseFields) Case {
	c := Case{OfficeID: office, ExternalID: externalID}
	updated, _ := c.UpdateFromLegacy(f)
	return updated
}

// UpdateFromLegacy overlays the fields present in a newer legacy snapshot
// and returns the updated case plus the names of fields whose stored value
// changed. The receiver is not modified.
func (c Case) UpdateFromLegacy(f CaseFields) (Case, []string) {
	changed := []string{}
	c.ConstituentExternalID = applyInt64(c.ConstituentExternalID, f.ConstituentExternalID, "constituent_external_id", &changed)
	c.CaseTypeID = applyInt64(c.CaseTypeID, f.CaseTypeID, "case_type_id", &changed)
	c.StatusID = applyInt64(c.StatusID, f.StatusID, "status_id", &changed)
	c.CategoryTypeID = applyInt64(c.CategoryTypeID, f.CategoryTypeID, "category_type_id", &changed)
	c.ContactTypeID = applyInt64(c.ContactTypeID, f.ContactTypeID, "contact_type_id", &changed)
	c.AssignedToID = applyInt64(c.AssignedToID, f.AssignedToID, "assigned_to_id", &changed)
	c.Summary = applyString(c.Summary, f.Summary, "summary", &changed)
	c.ReviewDate = applyTime(c.ReviewDate, f.ReviewDate, "review_date", &changed)
	return c, changed
}
