package portfolio

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist for the user.
	ErrNotFound = errors.New("portfolio record not found")

	// ErrInvalidInput indicates missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid portfolio input")

	// ErrUnavailable is returned after the retry budget is exhausted
	// against a transiently failing backend.
	ErrUnavailable = errors.New("portfolio backend unavailable")
)

// Reader answers the state questions the heartbeat detectors and outcome
// probes ask. Every method is scoped to one owner; implementations return
// current state, and the callers apply their own age and threshold logic.
type Reader interface {
	// ListUsers returns every owner id the backend manages, for global
	// heartbeat sweeps.
	ListUsers(ctx context.Context) ([]string, error)

	// OpenMaintenanceRequests returns requests not yet closed.
	OpenMaintenanceRequests(ctx context.Context, userID string) ([]MaintenanceRequest, error)

	// VacantProperties returns properties currently without a tenancy.
	VacantProperties(ctx context.Context, userID string) ([]Property, error)

	// ActiveListings returns listings currently advertised.
	ActiveListings(ctx context.Context, userID string) ([]Listing, error)

	// PendingApplications returns applications not yet decided.
	PendingApplications(ctx context.Context, userID string) ([]Application, error)

	// CurrentLeases returns leases that have not ended.
	CurrentLeases(ctx context.Context, userID string) ([]Lease, error)

	// RentArrears returns tenancies currently behind on rent.
	RentArrears(ctx context.Context, userID string) ([]Arrears, error)

	// Certificates returns all compliance certificates on file.
	Certificates(ctx context.Context, userID string) ([]Certificate, error)

	// Inspections returns last-inspection records per property.
	Inspections(ctx context.Context, userID string) ([]Inspection, error)

	// Policies returns insurance policies on file.
	Policies(ctx context.Context, userID string) ([]Policy, error)

	// UnreleasedBonds returns bonds still held.
	UnreleasedBonds(ctx context.Context, userID string) ([]Bond, error)

	// Tenancies returns all tenancies, current and ended.
	Tenancies(ctx context.Context, userID string) ([]Tenancy, error)
}

// Executor performs the side-effecting actions the agent's tools map to.
// Each returns a short human-readable result for the conversation log.
type Executor interface {
	SendRentReminder(ctx context.Context, userID, tenancyID string) (string, error)
	RequestTradeQuote(ctx context.Context, userID, requestID, note string) (string, error)
	DraftLeaseRenewal(ctx context.Context, userID, leaseID string) (string, error)
	ScheduleInspection(ctx context.Context, userID, propertyID string) (string, error)
	BookComplianceCheck(ctx context.Context, userID, certificateID string) (string, error)
	RequestListingReview(ctx context.Context, userID, listingID string) (string, error)
	NotifyOwner(ctx context.Context, userID, subject, body string) (string, error)
	InitiateBondRelease(ctx context.Context, userID, bondID string) (string, error)
}
