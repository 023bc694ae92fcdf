package portfolio

import "time"

// MaintenanceRequest is an open repair or upkeep job on a property.
type MaintenanceRequest struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PropertyID      string    `json:"property_id"`
	Issue           string    `json:"issue"`
	Status          string    `json:"status"` // open, quoted, assigned, closed
	AssignedTradeID string    `json:"assigned_trade_id,omitempty"`
	Urgent          bool      `json:"urgent"`
	OpenedAt        time.Time `json:"opened_at"`
}

// Property is one managed dwelling.
type Property struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Address     string     `json:"address"`
	Vacant      bool       `json:"vacant"`
	VacantSince *time.Time `json:"vacant_since,omitempty"`
}

// Listing is an advertisement for a vacant property.
type Listing struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	Active     bool      `json:"active"`
	ListedAt   time.Time `json:"listed_at"`
	Inquiries  int       `json:"inquiries"`
	WeeklyRent float64   `json:"weekly_rent"`
}

// Application is a prospective tenant's application against a listing.
type Application struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ListingID  string    `json:"listing_id"`
	Applicant  string    `json:"applicant"`
	Status     string    `json:"status"` // received, reviewing, approved, declined
	ReceivedAt time.Time `json:"received_at"`
}

// Lease is the agreement binding a tenancy to a property.
type Lease struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	PropertyID        string    `json:"property_id"`
	TenancyID         string    `json:"tenancy_id"`
	EndDate           time.Time `json:"end_date"`
	RenewalInProgress bool      `json:"renewal_in_progress"`
}

// Arrears is a tenancy behind on rent.
type Arrears struct {
	TenancyID   string    `json:"tenancy_id"`
	UserID      string    `json:"user_id"`
	PropertyID  string    `json:"property_id"`
	TenantName  string    `json:"tenant_name"`
	AmountOwed  float64   `json:"amount_owed"`
	OverdueDays int       `json:"overdue_days"`
	DueDate     time.Time `json:"due_date"`
}

// Certificate is a compliance certificate (smoke alarm, gas, pool fence)
// with an expiry date.
type Certificate struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	Kind       string    `json:"kind"` // smoke_alarm, gas, electrical, pool
	ExpiresAt  time.Time `json:"expires_at"`
}

// Inspection records when a property was last routinely inspected.
type Inspection struct {
	PropertyID      string    `json:"property_id"`
	UserID          string    `json:"user_id"`
	LastInspectedAt time.Time `json:"last_inspected_at"`
}

// Policy is a landlord insurance policy.
type Policy struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	Insurer    string    `json:"insurer"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Bond is a tenancy bond held against a now-possibly-ended tenancy.
type Bond struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TenancyID      string     `json:"tenancy_id"`
	Amount         float64    `json:"amount"`
	Released       bool       `json:"released"`
	TenancyEndedAt *time.Time `json:"tenancy_ended_at,omitempty"`
}

// Tenancy is an occupancy of a property by a tenant.
type Tenancy struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	PropertyID string     `json:"property_id"`
	TenantName string     `json:"tenant_name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
