package domain

import "time"

// EmailFields is the partial legacy payload for an email.
type EmailFields struct {
	ConstituentExternalID *int64
	CaseExternalID        *int64
	FromAddress           *string
	ToAddress             *string
	Subject               *string
	Direction             *string
	ReceivedAt            *time.Time
}

// Email is an office-scoped shadow record of a legacy email.
// TriageCategory is not a legacy field: it is filled in by the external
// AI classifier after the email first lands in the shadow store.
type Email struct {
	ID         string
	OfficeID   OfficeID
	ExternalID ExternalID

	ConstituentExternalID *int64
	CaseExternalID        *int64
	FromAddress           *string
	ToAddress             *string
	Subject               *string
	Direction             *string
	ReceivedAt            *time.Time

	TriageCategory *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEmailFromLegacy constructs a brand-new email from a legacy snapshot.
func NewEmailFromLegacy(office OfficeID, externalID ExternalID, f EmailFields) Email {
	e := Email{OfficeID: office, ExternalID: externalID}
	updated, _ := e.UpdateFromLegacy(f)
	return updated
}

// UpdateFromLegacy overlays the fields present in a newer legacy snapshot
// and returns the updated email plus the changed-field names. The triage
// category is never touched by legacy data.
func (e Email) UpdateFromLegacy(f EmailFields) (Email, []string) {
	changed := []string{}
	e.ConstituentExternalID = applyInt64(e.ConstituentExternalID, f.ConstituentExternalID, "constituent_external_id", &changed)
	e.CaseExternalID = applyInt64(e.CaseExternalID, f.CaseExternalID, "case_external_id", &changed)
	e.FromAddress = applyString(e.FromAddress, f.FromAddress, "from_address", &changed)
	e.ToAddress = applyString(e.ToAddress, f.ToAddress, "to_address", &changed)
	e.Subject = applyString(e.Subject, f.Subject, "subject", &changed)
	e.Direction = applyString(e.Direction, f.Direction, "direction", &changed)
	e.ReceivedAt = applyTime(e.ReceivedAt, f.ReceivedAt, "received_at", &changed)
	return e, changed
}

// WithTriageCategory returns a copy of the email carrying the classifier's
// category.
func (e Email) WithTriageCategory(category string) Email {
	e.TriageCategory = &category
	return e
}
