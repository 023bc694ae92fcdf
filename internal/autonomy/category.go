package autonomy

// Category classifies the business domain a candidate action touches.
// The heartbeat scanner runs one detector per category, and autonomy
// levels and confidence minimums are configured per category.
type Category string

const (
	// CategoryMaintenance covers repair requests, trade callouts, and quotes.
	CategoryMaintenance Category = "maintenance"

	// CategoryTenantFinding covers vacancies, applications, and screening.
	CategoryTenantFinding Category = "tenant_finding"

	// CategoryLeaseManagement covers lease renewals, variations, and notices.
	CategoryLeaseManagement Category = "lease_management"

	// CategoryRentCollection covers arrears, reminders, and payment plans.
	CategoryRentCollection Category = "rent_collection"

	// CategoryCompliance covers smoke alarm, gas, pool, and other
	// certification obligations.
	CategoryCompliance Category = "compliance"

	// CategoryListings covers advertising vacant properties.
	CategoryListings Category = "listings"

	// CategoryInspections covers routine and entry/exit inspections.
	CategoryInspections Category = "inspections"

	// CategoryInsurance covers landlord policy renewals and claims.
	CategoryInsurance Category = "insurance"

	// CategoryBonds covers bond lodgement and release.
	CategoryBonds Category = "bonds"

	// CategoryGeneral is the fallback for actions that fit no specific
	// domain, including record hygiene.
	CategoryGeneral Category = "general"
)

// Categories lists every category in a stable order. Detectors, presets,
// and configuration vectors iterate this slice so all three stay aligned.
var Categories = []Category{
	CategoryMaintenance,
	CategoryTenantFinding,
	CategoryLeaseManagement,
	CategoryRentCollection,
	CategoryCompliance,
	CategoryListings,
	CategoryInspections,
	CategoryInsurance,
	CategoryBonds,
	CategoryGeneral,
}

// ValidCategories maps valid category strings to their typed values.
var ValidCategories = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[string(c)] = c
	}
	return m
}()

// IsValidCategory returns true if the string is a recognized category.
func IsValidCategory(s string) bool {
	_, ok := ValidCategories[s]
	return ok
}

// ParseCategory converts a string to a Category, falling back to
// CategoryGeneral for unrecognized input.
func ParseCategory(s string) Category {
	if c, ok := ValidCategories[s]; ok {
		return c
	}
	return CategoryGeneral
}
