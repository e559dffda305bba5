package legacy

import "time"

// Date-range filter fields understood by the Caseworker search endpoints.
const (
	DateFieldCreated  = "created"
	DateFieldModified = "modified"
)

// Case is the raw legacy record shape for a case. All reference fields are
// legacy numeric IDs. Optional fields are pointers: the legacy API omits
// what it does not know.
type Case struct {
	ID            int64      `json:"id"`
	ConstituentID *int64     `json:"constituentID,omitempty"`
	CaseTypeID    *int64     `json:"caseTypeID,omitempty"`
	StatusID      *int64     `json:"statusID,omitempty"`
	CategoryID    *int64     `json:"categoryTypeID,omitempty"`
	ContactTypeID *int64     `json:"contactTypeID,omitempty"`
	AssignedToID  *int64     `json:"assignedToID,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	ReviewDate    *time.Time `json:"reviewDate,omitempty"`
}

// Constituent is the raw legacy record shape for a constituent.
type Constituent struct {
	ID        int64   `json:"id"`
	TitleID   *int64  `json:"titleID,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address1  *string `json:"address1,omitempty"`
	Address2  *string `json:"address2,omitempty"`
	Postcode  *string `json:"postcode,omitempty"`
}

// Email is the raw legacy record shape for an email.
type Email struct {
	ID            int64      `json:"id"`
	ConstituentID *int64     `json:"constituentID,omitempty"`
	CaseID        *int64     `json:"caseID,omitempty"`
	FromAddress   *string    `json:"fromAddress,omitempty"`
	ToAddress     *string    `json:"toAddress,omitempty"`
	Subject       *string    `json:"subject,omitempty"`
	Direction     *string    `json:"direction,omitempty"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty"`
}

// CaseQuery selects a page of cases filtered by a creation- or
// modification-date window.
type CaseQuery struct {
	DateField      string
	From           time.Time
	To             time.Time
	PageNo         int
	ResultsPerPage int
}

// ConstituentQuery selects a page of constituents. The constituent endpoint
// family filters by after-timestamps instead of an explicit range.
type ConstituentQuery struct {
	CreatedAfter  *time.Time
	ModifiedAfter *time.Time
	Page          int
	Limit         int
}

// EmailQuery follows the same shape family as ConstituentQuery.
type EmailQuery struct {
	CreatedAfter  *time.Time
	ModifiedAfter *time.Time
	Page          int
	Limit         int
}

type caseSearchRequest struct {
	DateRange      dateRange `json:"dateRange"`
	PageNo         int       `json:"pageNo"`
	ResultsPerPage int       `json:"resultsPerPage"`
}

type dateRange struct {
	Type string    `json:"type"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type caseSearchResponse struct {
	Results []Case `json:"results"`
}

type constituentSearchResponse struct {
	Results []Constituent `json:"results"`
}

type emailSearchResponse struct {
	Results []Email `json:"results"`
}
