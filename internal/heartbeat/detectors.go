package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
)

// Detection thresholds. Findings fire when state has lingered past
// these; anything younger is considered in-flight.
const (
	maintenanceUnassignedAfter = 48 * time.Hour
	vacantWithoutListingAfter  = 7 * 24 * time.Hour
	applicationStaleAfter      = 3 * 24 * time.Hour
	leaseRenewalWindow         = 60 * 24 * time.Hour
	arrearsMinOverdueDays      = 5
	certificateExpiryWindow    = 30 * 24 * time.Hour
	listingStaleAfter          = 21 * 24 * time.Hour
	inspectionOverdueAfter     = 6 * 30 * 24 * time.Hour
	policyExpiryWindow         = 30 * 24 * time.Hour
	bondHeldAfterEnd           = 14 * 24 * time.Hour
)

// Detector inspects one slice of portfolio state for a user.
type Detector struct {
	Category autonomy.Category
	Detect   func(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error)
}

// Detectors returns the full detector set in sweep order.
func Detectors() []Detector {
	return []Detector{
		{autonomy.CategoryMaintenance, detectUnassignedMaintenance},
		{autonomy.CategoryTenantFinding, detectTenantFinding},
		{autonomy.CategoryLeaseManagement, detectExpiringLeases},
		{autonomy.CategoryRentCollection, detectRentArrears},
		{autonomy.CategoryCompliance, detectExpiringCertificates},
		{autonomy.CategoryListings, detectStaleListings},
		{autonomy.CategoryInspections, detectOverdueInspections},
		{autonomy.CategoryInsurance, detectExpiringPolicies},
		{autonomy.CategoryBonds, detectUnreleasedBonds},
		{autonomy.CategoryGeneral, detectRecordHygiene},
	}
}

func detectUnassignedMaintenance(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	requests, err := reader.OpenMaintenanceRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, r := range requests {
		age := now.Sub(r.OpenedAt)
		if r.AssignedTradeID != "" || age < maintenanceUnassignedAfter {
			continue
		}
		priority := knowledge.PriorityNormal
		if r.Urgent {
			priority = knowledge.PriorityUrgent
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryMaintenance,
			EntityID: r.ID,
			Title:    "Maintenance request needs a tradesperson",
			Recommendation: fmt.Sprintf(
				"Request a quote for %q at property %s: the request has been open %d days with no trade assigned.",
				r.Issue, r.PropertyID, int(age.Hours()/24)),
			Priority: priority,
			ToolName: "request_trade_quote",
			ToolArgs: map[string]interface{}{
				"request_id": r.ID,
				"note":       fmt.Sprintf("Open since %s: %s", r.OpenedAt.Format("2 Jan"), r.Issue),
			},
		})
	}
	return findings, nil
}

// detectTenantFinding covers both vacancy without advertising and
// applications sitting unreviewed.
func detectTenantFinding(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	properties, err := reader.VacantProperties(ctx, userID)
	if err != nil {
		return nil, err
	}
	listings, err := reader.ActiveListings(ctx, userID)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]bool, len(listings))
	for _, l := range listings {
		listed[l.PropertyID] = true
	}

	var findings []Finding
	for _, p := range properties {
		if listed[p.ID] || p.VacantSince == nil {
			continue
		}
		vacantFor := now.Sub(*p.VacantSince)
		if vacantFor < vacantWithoutListingAfter {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryTenantFinding,
			EntityID: p.ID,
			Title:    "Vacant property is not advertised",
			Recommendation: fmt.Sprintf(
				"%s has been vacant %d days with no active listing. It should be advertised to stop the income gap growing.",
				p.Address, int(vacantFor.Hours()/24)),
			Priority: knowledge.PriorityHigh,
			ToolName: "notify_owner",
			ToolArgs: map[string]interface{}{
				"subject": "Vacant property not listed: " + p.Address,
				"body": fmt.Sprintf("%s has been vacant since %s and has no active listing.",
					p.Address, p.VacantSince.Format("2 Jan 2006")),
			},
		})
	}

	applications, err := reader.PendingApplications(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range applications {
		waiting := now.Sub(a.ReceivedAt)
		if waiting < applicationStaleAfter {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryTenantFinding,
			EntityID: a.ID,
			Title:    "Tenant application awaiting review",
			Recommendation: fmt.Sprintf(
				"The application from %s on listing %s has waited %d days for a decision. Good applicants go elsewhere quickly.",
				a.Applicant, a.ListingID, int(waiting.Hours()/24)),
			Priority: knowledge.PriorityNormal,
			ToolName: "notify_owner",
			ToolArgs: map[string]interface{}{
				"subject": "Application from " + a.Applicant + " needs review",
				"body": fmt.Sprintf("Received %s against listing %s, still undecided.",
					a.ReceivedAt.Format("2 Jan"), a.ListingID),
			},
		})
	}
	return findings, nil
}

func detectExpiringLeases(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	leases, err := reader.CurrentLeases(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, l := range leases {
		remaining := l.EndDate.Sub(now)
		if l.RenewalInProgress || remaining < 0 || remaining > leaseRenewalWindow {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryLeaseManagement,
			EntityID: l.ID,
			Title:    "Lease ending soon with no renewal started",
			Recommendation: fmt.Sprintf(
				"The lease on property %s ends %s (%d days away) and no renewal is in progress. A renewal offer should go to the tenant now.",
				l.PropertyID, l.EndDate.Format("2 Jan 2006"), int(remaining.Hours()/24)),
			Priority: knowledge.PriorityNormal,
			ToolName: "draft_lease_renewal",
			ToolArgs: map[string]interface{}{"lease_id": l.ID},
		})
	}
	return findings, nil
}

func detectRentArrears(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	arrears, err := reader.RentArrears(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, a := range arrears {
		if a.OverdueDays < arrearsMinOverdueDays {
			continue
		}
		priority := knowledge.PriorityNormal
		if a.OverdueDays >= 14 {
			priority = knowledge.PriorityHigh
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryRentCollection,
			EntityID: a.TenancyID,
			Title:    "Rent overdue at " + a.PropertyID,
			Recommendation: fmt.Sprintf(
				"%s is %d days behind on rent ($%.2f owed). A polite reminder usually resolves arrears at this stage.",
				a.TenantName, a.OverdueDays, a.AmountOwed),
			Priority: priority,
			ToolName: "send_rent_reminder",
			ToolArgs: map[string]interface{}{"tenancy_id": a.TenancyID},
		})
	}
	return findings, nil
}

func detectExpiringCertificates(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	certs, err := reader.Certificates(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, c := range certs {
		remaining := c.ExpiresAt.Sub(now)
		if remaining > certificateExpiryWindow {
			continue
		}
		priority := knowledge.PriorityHigh
		state := fmt.Sprintf("expires %s", c.ExpiresAt.Format("2 Jan 2006"))
		if remaining < 0 {
			priority = knowledge.PriorityUrgent
			state = fmt.Sprintf("expired %s and the property is out of compliance", c.ExpiresAt.Format("2 Jan 2006"))
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryCompliance,
			EntityID: c.ID,
			Title:    "Compliance certificate needs renewal",
			Recommendation: fmt.Sprintf(
				"The %s certificate for property %s %s. A renewal check should be booked.",
				c.Kind, c.PropertyID, state),
			Priority: priority,
			ToolName: "book_compliance_check",
			ToolArgs: map[string]interface{}{"certificate_id": c.ID},
		})
	}
	return findings, nil
}

func detectStaleListings(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	listings, err := reader.ActiveListings(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, l := range listings {
		age := now.Sub(l.ListedAt)
		if !l.Active || l.Inquiries > 0 || age < listingStaleAfter {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryListings,
			EntityID: l.ID,
			Title:    "Listing attracting no interest",
			Recommendation: fmt.Sprintf(
				"The listing for property %s has run %d days at $%.0f/week with zero inquiries. The rent or presentation needs reviewing.",
				l.PropertyID, int(age.Hours()/24), l.WeeklyRent),
			Priority: knowledge.PriorityNormal,
			ToolName: "request_listing_review",
			ToolArgs: map[string]interface{}{"listing_id": l.ID},
		})
	}
	return findings, nil
}

func detectOverdueInspections(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	inspections, err := reader.Inspections(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, i := range inspections {
		since := now.Sub(i.LastInspectedAt)
		if since < inspectionOverdueAfter {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryInspections,
			EntityID: i.PropertyID,
			Title:    "Routine inspection overdue",
			Recommendation: fmt.Sprintf(
				"Property %s was last inspected %s, %d months ago. A routine inspection should be scheduled.",
				i.PropertyID, i.LastInspectedAt.Format("Jan 2006"), int(since.Hours()/(24*30))),
			Priority: knowledge.PriorityNormal,
			ToolName: "schedule_inspection",
			ToolArgs: map[string]interface{}{"property_id": i.PropertyID},
		})
	}
	return findings, nil
}

func detectExpiringPolicies(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	policies, err := reader.Policies(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, p := range policies {
		remaining := p.ExpiresAt.Sub(now)
		if remaining > policyExpiryWindow {
			continue
		}
		priority := knowledge.PriorityHigh
		if remaining < 0 {
			priority = knowledge.PriorityUrgent
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryInsurance,
			EntityID: p.ID,
			Title:    "Landlord insurance expiring",
			Recommendation: fmt.Sprintf(
				"The %s policy on property %s expires %s. The owner should arrange renewal before cover lapses.",
				p.Insurer, p.PropertyID, p.ExpiresAt.Format("2 Jan 2006")),
			Priority: priority,
			ToolName: "notify_owner",
			ToolArgs: map[string]interface{}{
				"subject": "Insurance policy expiring: " + p.PropertyID,
				"body": fmt.Sprintf("Policy %s with %s expires %s.",
					p.ID, p.Insurer, p.ExpiresAt.Format("2 Jan 2006")),
			},
		})
	}
	return findings, nil
}

func detectUnreleasedBonds(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	bonds, err := reader.UnreleasedBonds(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, b := range bonds {
		if b.Released || b.TenancyEndedAt == nil {
			continue
		}
		held := now.Sub(*b.TenancyEndedAt)
		if held < bondHeldAfterEnd {
			continue
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryBonds,
			EntityID: b.ID,
			Title:    "Bond still held after tenancy end",
			Recommendation: fmt.Sprintf(
				"The $%.2f bond on tenancy %s has been held %d days past the tenancy end. Release should be initiated unless a claim is pending.",
				b.Amount, b.TenancyID, int(held.Hours()/24)),
			Priority: knowledge.PriorityNormal,
			ToolName: "initiate_bond_release",
			ToolArgs: map[string]interface{}{"bond_id": b.ID},
		})
	}
	return findings, nil
}

func detectRecordHygiene(ctx context.Context, reader portfolio.Reader, userID string, now time.Time) ([]Finding, error) {
	tenancies, err := reader.Tenancies(ctx, userID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, t := range tenancies {
		if t.EndedAt != nil || (t.Email != "" && t.Phone != "") {
			continue
		}
		missing := "phone number"
		if t.Email == "" && t.Phone == "" {
			missing = "email address and phone number"
		} else if t.Email == "" {
			missing = "email address"
		}
		findings = append(findings, Finding{
			Category: autonomy.CategoryGeneral,
			EntityID: t.ID,
			Title:    "Tenant contact details incomplete",
			Recommendation: fmt.Sprintf(
				"The record for %s at property %s is missing a %s, which blocks reminders and notices reaching them.",
				t.TenantName, t.PropertyID, missing),
			Priority: knowledge.PriorityLow,
			ToolName: "notify_owner",
			ToolArgs: map[string]interface{}{
				"subject": "Missing contact details for " + t.TenantName,
				"body": fmt.Sprintf("Tenancy %s at %s has no %s on file.",
					t.ID, t.PropertyID, missing),
			},
		})
	}
	return findings, nil
}
