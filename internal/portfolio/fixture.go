package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fixture is an in-memory Reader and Executor for tests and local
// development. All methods are safe for concurrent use. Executed actions
// are appended to a log tests can inspect.
type Fixture struct {
	mu sync.RWMutex

	users        []string
	maintenance  map[string][]MaintenanceRequest
	properties   map[string][]Property
	listings     map[string][]Listing
	applications map[string][]Application
	leases       map[string][]Lease
	arrears      map[string][]Arrears
	certificates map[string][]Certificate
	inspections  map[string][]Inspection
	policies     map[string][]Policy
	bonds        map[string][]Bond
	tenancies    map[string][]Tenancy

	actions []ExecutedAction
}

// ExecutedAction is one Executor call the fixture received.
type ExecutedAction struct {
	UserID   string
	Action   string
	EntityID string
	At       time.Time
}

var (
	_ Reader   = (*Fixture)(nil)
	_ Executor = (*Fixture)(nil)
)

// NewFixture builds an empty fixture. Seed it with the Add* methods or
// SeedDemo.
func NewFixture() *Fixture {
	return &Fixture{
		maintenance:  make(map[string][]MaintenanceRequest),
		properties:   make(map[string][]Property),
		listings:     make(map[string][]Listing),
		applications: make(map[string][]Application),
		leases:       make(map[string][]Lease),
		arrears:      make(map[string][]Arrears),
		certificates: make(map[string][]Certificate),
		inspections:  make(map[string][]Inspection),
		policies:     make(map[string][]Policy),
		bonds:        make(map[string][]Bond),
		tenancies:    make(map[string][]Tenancy),
	}
}

// AddUser registers an owner id for ListUsers.
func (f *Fixture) AddUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u == userID {
			return
		}
	}
	f.users = append(f.users, userID)
}

func (f *Fixture) AddMaintenanceRequest(r MaintenanceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maintenance[r.UserID] = append(f.maintenance[r.UserID], r)
}

func (f *Fixture) AddProperty(p Property) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties[p.UserID] = append(f.properties[p.UserID], p)
}

func (f *Fixture) AddListing(l Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[l.UserID] = append(f.listings[l.UserID], l)
}

func (f *Fixture) AddApplication(a Application) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applications[a.UserID] = append(f.applications[a.UserID], a)
}

func (f *Fixture) AddLease(l Lease) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leases[l.UserID] = append(f.leases[l.UserID], l)
}

func (f *Fixture) AddArrears(a Arrears) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrears[a.UserID] = append(f.arrears[a.UserID], a)
}

// ClearArrears removes a tenancy's arrears, as if rent was paid.
func (f *Fixture) ClearArrears(userID, tenancyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.arrears[userID][:0]
	for _, a := range f.arrears[userID] {
		if a.TenancyID != tenancyID {
			kept = append(kept, a)
		}
	}
	f.arrears[userID] = kept
}

func (f *Fixture) AddCertificate(c Certificate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.certificates[c.UserID] = append(f.certificates[c.UserID], c)
}

func (f *Fixture) AddInspection(i Inspection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspections[i.UserID] = append(f.inspections[i.UserID], i)
}

func (f *Fixture) AddPolicy(p Policy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[p.UserID] = append(f.policies[p.UserID], p)
}

func (f *Fixture) AddBond(b Bond) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bonds[b.UserID] = append(f.bonds[b.UserID], b)
}

func (f *Fixture) AddTenancy(t Tenancy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenancies[t.UserID] = append(f.tenancies[t.UserID], t)
}

// AssignTrade marks a maintenance request as assigned, as if a trade
// accepted the job.
func (f *Fixture) AssignTrade(userID, requestID, tradeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.maintenance[userID] {
		if r.ID == requestID {
			f.maintenance[userID][i].AssignedTradeID = tradeID
			f.maintenance[userID][i].Status = "assigned"
		}
	}
}

// CloseMaintenanceRequest removes a request from the open set.
func (f *Fixture) CloseMaintenanceRequest(userID, requestID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.maintenance[userID][:0]
	for _, r := range f.maintenance[userID] {
		if r.ID != requestID {
			kept = append(kept, r)
		}
	}
	f.maintenance[userID] = kept
}

// StartRenewal flags a lease renewal as in progress.
func (f *Fixture) StartRenewal(userID, leaseID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.leases[userID] {
		if l.ID == leaseID {
			f.leases[userID][i].RenewalInProgress = true
		}
	}
}

// Actions returns a copy of the executed action log.
func (f *Fixture) Actions() []ExecutedAction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]ExecutedAction, len(f.actions))
	copy(out, f.actions)
	return out
}

// SeedDemo loads one owner with a little of everything the detectors look
// for, including the canonical 10-day-old maintenance request with no
// trade assigned.
func (f *Fixture) SeedDemo(userID string) {
	now := time.Now()
	f.AddUser(userID)
	f.AddMaintenanceRequest(MaintenanceRequest{
		ID: "mr-1001", UserID: userID, PropertyID: "prop-1",
		Issue: "Hot water system leaking in the garage", Status: "open",
		OpenedAt: now.Add(-10 * 24 * time.Hour),
	})
	f.AddArrears(Arrears{
		TenancyID: "ten-201", UserID: userID, PropertyID: "prop-2",
		TenantName: "J. Chen", AmountOwed: 1240, OverdueDays: 8,
		DueDate: now.Add(-8 * 24 * time.Hour),
	})
	f.AddLease(Lease{
		ID: "lease-301", UserID: userID, PropertyID: "prop-2", TenancyID: "ten-201",
		EndDate: now.Add(45 * 24 * time.Hour),
	})
	f.AddCertificate(Certificate{
		ID: "cert-401", UserID: userID, PropertyID: "prop-1",
		Kind: "smoke_alarm", ExpiresAt: now.Add(20 * 24 * time.Hour),
	})
	f.AddTenancy(Tenancy{
		ID: "ten-201", UserID: userID, PropertyID: "prop-2",
		TenantName: "J. Chen", Email: "jchen@example.com",
	})
}

func (f *Fixture) ListUsers(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.users))
	copy(out, f.users)
	return out, nil
}

func copySlice[T any](m map[string][]T, userID string) []T {
	out := make([]T, len(m[userID]))
	copy(out, m[userID])
	return out
}

func (f *Fixture) OpenMaintenanceRequests(ctx context.Context, userID string) ([]MaintenanceRequest, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.maintenance, userID), nil
}

func (f *Fixture) VacantProperties(ctx context.Context, userID string) ([]Property, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Property
	for _, p := range f.properties[userID] {
		if p.Vacant {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fixture) ActiveListings(ctx context.Context, userID string) ([]Listing, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Listing
	for _, l := range f.listings[userID] {
		if l.Active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *Fixture) PendingApplications(ctx context.Context, userID string) ([]Application, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Application
	for _, a := range f.applications[userID] {
		if a.Status == "received" || a.Status == "reviewing" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fixture) CurrentLeases(ctx context.Context, userID string) ([]Lease, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.leases, userID), nil
}

func (f *Fixture) RentArrears(ctx context.Context, userID string) ([]Arrears, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.arrears, userID), nil
}

func (f *Fixture) Certificates(ctx context.Context, userID string) ([]Certificate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.certificates, userID), nil
}

func (f *Fixture) Inspections(ctx context.Context, userID string) ([]Inspection, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.inspections, userID), nil
}

func (f *Fixture) Policies(ctx context.Context, userID string) ([]Policy, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.policies, userID), nil
}

func (f *Fixture) UnreleasedBonds(ctx context.Context, userID string) ([]Bond, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Bond
	for _, b := range f.bonds[userID] {
		if !b.Released {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *Fixture) Tenancies(ctx context.Context, userID string) ([]Tenancy, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copySlice(f.tenancies, userID), nil
}

// record logs an executed action and returns a result message.
func (f *Fixture) record(userID, action, entityID, msg string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, ExecutedAction{
		UserID: userID, Action: action, EntityID: entityID, At: time.Now(),
	})
	return msg, nil
}

func (f *Fixture) SendRentReminder(ctx context.Context, userID, tenancyID string) (string, error) {
	return f.record(userID, "send_rent_reminder", tenancyID,
		fmt.Sprintf("rent reminder sent for tenancy %s", tenancyID))
}

func (f *Fixture) RequestTradeQuote(ctx context.Context, userID, requestID, note string) (string, error) {
	return f.record(userID, "request_trade_quote", requestID,
		fmt.Sprintf("trade quote requested for maintenance request %s", requestID))
}

func (f *Fixture) DraftLeaseRenewal(ctx context.Context, userID, leaseID string) (string, error) {
	return f.record(userID, "draft_lease_renewal", leaseID,
		fmt.Sprintf("lease renewal drafted for lease %s", leaseID))
}

func (f *Fixture) ScheduleInspection(ctx context.Context, userID, propertyID string) (string, error) {
	return f.record(userID, "schedule_inspection", propertyID,
		fmt.Sprintf("routine inspection scheduled for property %s", propertyID))
}

func (f *Fixture) BookComplianceCheck(ctx context.Context, userID, certificateID string) (string, error) {
	return f.record(userID, "book_compliance_check", certificateID,
		fmt.Sprintf("compliance check booked for certificate %s", certificateID))
}

func (f *Fixture) RequestListingReview(ctx context.Context, userID, listingID string) (string, error) {
	return f.record(userID, "request_listing_review", listingID,
		fmt.Sprintf("listing review requested for listing %s", listingID))
}

func (f *Fixture) NotifyOwner(ctx context.Context, userID, subject, body string) (string, error) {
	return f.record(userID, "notify_owner", "",
		fmt.Sprintf("owner notified: %s", subject))
}

func (f *Fixture) InitiateBondRelease(ctx context.Context, userID, bondID string) (string, error) {
	return f.record(userID, "initiate_bond_release", bondID,
		fmt.Sprintf("bond release initiated for bond %s", bondID))
}
