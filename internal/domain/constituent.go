package domain

import "time"

// ConstituentFields is the partial legacy payload for a constituent.
type ConstituentFields struct {
	TitleID   *int64
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address1  *string
	Address2  *string
	Postcode  *string
}

// Constituent is an office-scoped shadow record of a legacy constituent.
type Constituent struct {
	ID         string
	OfficeID   OfficeID
	ExternalID ExternalID

	TitleID   *int64
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address1  *string
	Address2  *string
	Postcode  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConstituentFromLegacy constructs a brand-new constituent from a legacy
// snapshot.
func NewConstituentFromLegacy(office OfficeID, externalID ExternalID, f ConstituentFields) Constituent {
	c := Constituent{OfficeID: office, ExternalID: externalID}
	updated, _ := c.UpdateFromLegacy(f)
	return updated
}

// UpdateFromLegacy overlays the fields present in a newer legacy snapshot
// and returns the updated constituent plus the changed-field names.
func (c Constituent) UpdateFromLegacy(f ConstituentFields) (Constituent, []string) {
	changed := []string{}
	c.TitleID = applyInt64(c.TitleID, f.TitleID, "title_id", &changed)
	c.FirstName = applyString(c.FirstName, f.FirstName, "first_name", &changed)
	c.LastName = applyString(c.LastName, f.LastName, "last_name", &changed)
	c.Email = applyString(c.Email, f.Email, "email", &changed)
	c.Phone = applyString(c.Phone, f.Phone, "phone", &changed)
	c.Address1 = applyString(c.Address1, f.Address1, "address1", &changed)
	c.Address2 = applyString(c.Address2, f.Address2, "address2", &changed)
	c.Postcode = applyString(c.Postcode, f.Postcode, "postcode", &changed)
	return c, changed
}
