package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// Knowledge is the slice of the knowledge store the memory and task
// tools read from.
type Knowledge interface {
	SearchSimilarDecisions(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]knowledge.DecisionMatch, error)
	SearchSimilarRules(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]knowledge.RuleMatch, error)
	ListTasks(ctx context.Context, userID string, status knowledge.TaskStatus, category autonomy.Category, limit int) ([]*knowledge.Task, error)
}

// RegisterBuiltins installs the portfolio query, memory, and action tools.
// Query and memory tools are exempt from the gate; action tools are scored.
func RegisterBuiltins(r *Registry, reader portfolio.Reader, exec portfolio.Executor, kn Knowledge, embedder vectorstore.Embedder) error {
	tools := append(queryTools(reader, kn), memoryTools(kn, embedder)...)
	tools = append(tools, actionTools(exec)...)
	for i := range tools {
		if err := r.Register(&tools[i]); err != nil {
			return err
		}
	}
	return nil
}

func queryTools(reader portfolio.Reader, kn Knowledge) []Tool {
	return []Tool{
		{
			Name:        "list_rent_arrears",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List tenancies currently behind on rent, with amounts owed and days overdue.",
			Run: func(ctx context.Context, userID string, _ map[string]interface{}) (string, error) {
				rows, err := reader.RentArrears(ctx, userID)
				if err != nil {
					return "", err
				}
				return renderList("arrears", rows)
			},
		},
		{
			Name:        "list_open_maintenance",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List maintenance requests not yet closed, including urgency and assigned trade.",
			Run: func(ctx context.Context, userID string, _ map[string]interface{}) (string, error) {
				rows, err := reader.OpenMaintenanceRequests(ctx, userID)
				if err != nil {
					return "", err
				}
				return renderList("maintenance_requests", rows)
			},
		},
		{
			Name:        "list_vacant_properties",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List properties currently without a tenancy.",
			Run: func(ctx context.Context, userID string, _ map[string]interface{}) (string, error) {
				rows, err := reader.VacantProperties(ctx, userID)
				if err != nil {
					return "", err
				}
				return renderList("properties", rows)
			},
		},
		{
			Name:        "list_current_leases",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List leases that have not ended, with end dates and renewal state.",
			Run: func(ctx context.Context, userID string, _ map[string]interface{}) (string, error) {
				rows, err := reader.CurrentLeases(ctx, userID)
				if err != nil {
					return "", err
				}
				return renderList("leases", rows)
			},
		},
		{
			Name:        "list_certificates",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List compliance certificates on file with their expiry dates.",
			Run: func(ctx context.Context, userID string, _ map[string]interface{}) (string, error) {
				rows, err := reader.Certificates(ctx, userID)
				if err != nil {
					return "", err
				}
				return renderList("certificates", rows)
			},
		},
		{
			Name:        "list_pending_tasks",
			Kind:        KindQuery,
			Exempt:      true,
			Description: "List tasks awaiting the owner: drafts pending approval and open suggestions.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"status": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"pending_approval", "suggested"},
						"description": "Which task status to list. Defaults to pending_approval.",
					},
				},
			},
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				status := knowledge.TaskStatusPendingApproval
				if s, _ := args["status"].(string); s != "" {
					status = knowledge.TaskStatus(s)
				}
				rows, err := kn.ListTasks(ctx, userID, status, "", 50)
				if err != nil {
					return "", err
				}
				return renderList("tasks", rows)
			},
		},
	}
}

func memoryTools(kn Knowledge, embedder vectorstore.Embedder) []Tool {
	const (
		searchThreshold = 0.3
		searchCount     = 5
	)
	embed := func(ctx context.Context, args map[string]interface{}) ([]float32, error) {
		query, err := strArg(args, "query")
		if err != nil {
			return nil, err
		}
		if embedder == nil {
			return nil, fmt.Errorf("memory search is unavailable: no embedder configured")
		}
		return embedder.EmbedQuery(ctx, query)
	}
	queryParams := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language description of what to look for.",
			},
		},
		"required": []string{"query"},
	}
	return []Tool{
		{
			Name:        "search_decisions",
			Kind:        KindMemory,
			Exempt:      true,
			Description: "Search past decisions by similarity, including dispositions and owner feedback.",
			Parameters:  queryParams,
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				vec, err := embed(ctx, args)
				if err != nil {
					return "", err
				}
				matches, err := kn.SearchSimilarDecisions(ctx, vec, userID, searchThreshold, searchCount)
				if err != nil {
					return "", err
				}
				return renderList("decisions", matches)
			},
		},
		{
			Name:        "search_rules",
			Kind:        KindMemory,
			Exempt:      true,
			Description: "Search learned rules by similarity. Rules come from owner corrections and should be followed.",
			Parameters:  queryParams,
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				vec, err := embed(ctx, args)
				if err != nil {
					return "", err
				}
				matches, err := kn.SearchSimilarRules(ctx, vec, userID, searchThreshold, searchCount)
				if err != nil {
					return "", err
				}
				return renderList("rules", matches)
			},
		},
	}
}

func actionTools(exec portfolio.Executor) []Tool {
	idParams := func(name, desc string) map[string]interface{} {
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				name: map[string]interface{}{"type": "string", "description": desc},
			},
			"required": []string{name},
		}
	}
	return []Tool{
		{
			Name:        "send_rent_reminder",
			Kind:        KindExternal,
			Category:    autonomy.CategoryRentCollection,
			Description: "Send a polite rent reminder to the tenant on an overdue tenancy.",
			Parameters:  idParams("tenancy_id", "Tenancy to remind, from list_rent_arrears."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "tenancy_id")
				if err != nil {
					return "", err
				}
				return exec.SendRentReminder(ctx, userID, id)
			},
		},
		{
			Name:        "request_trade_quote",
			Kind:        KindExternal,
			Category:    autonomy.CategoryMaintenance,
			Description: "Request a quote from a tradesperson for an open maintenance request.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"request_id": map[string]interface{}{"type": "string", "description": "Maintenance request to quote."},
					"note":       map[string]interface{}{"type": "string", "description": "Context for the tradesperson."},
				},
				"required": []string{"request_id"},
			},
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "request_id")
				if err != nil {
					return "", err
				}
				note, _ := args["note"].(string)
				return exec.RequestTradeQuote(ctx, userID, id, note)
			},
		},
		{
			Name:        "draft_lease_renewal",
			Kind:        KindGenerate,
			Category:    autonomy.CategoryLeaseManagement,
			Description: "Draft a renewal offer for a lease approaching its end date.",
			Parameters:  idParams("lease_id", "Lease to renew, from list_current_leases."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "lease_id")
				if err != nil {
					return "", err
				}
				return exec.DraftLeaseRenewal(ctx, userID, id)
			},
		},
		{
			Name:        "schedule_inspection",
			Kind:        KindIntegration,
			Category:    autonomy.CategoryInspections,
			Description: "Schedule a routine inspection for a property.",
			Parameters:  idParams("property_id", "Property to inspect."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "property_id")
				if err != nil {
					return "", err
				}
				return exec.ScheduleInspection(ctx, userID, id)
			},
		},
		{
			Name:        "book_compliance_check",
			Kind:        KindIntegration,
			Category:    autonomy.CategoryCompliance,
			Description: "Book a renewal check for an expiring compliance certificate.",
			Parameters:  idParams("certificate_id", "Certificate to renew, from list_certificates."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "certificate_id")
				if err != nil {
					return "", err
				}
				return exec.BookComplianceCheck(ctx, userID, id)
			},
		},
		{
			Name:        "request_listing_review",
			Kind:        KindAction,
			Category:    autonomy.CategoryListings,
			Description: "Flag a stale listing for review of its rent and presentation.",
			Parameters:  idParams("listing_id", "Listing to review."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "listing_id")
				if err != nil {
					return "", err
				}
				return exec.RequestListingReview(ctx, userID, id)
			},
		},
		{
			Name:        "notify_owner",
			Kind:        KindAction,
			Category:    autonomy.CategoryGeneral,
			Description: "Send the owner a notification about something that needs their attention.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"subject": map[string]interface{}{"type": "string"},
					"body":    map[string]interface{}{"type": "string"},
				},
				"required": []string{"subject", "body"},
			},
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				subject, err := strArg(args, "subject")
				if err != nil {
					return "", err
				}
				body, err := strArg(args, "body")
				if err != nil {
					return "", err
				}
				return exec.NotifyOwner(ctx, userID, subject, body)
			},
		},
		{
			Name:        "initiate_bond_release",
			Kind:        KindAction,
			Category:    autonomy.CategoryBonds,
			Description: "Start releasing the bond for an ended tenancy.",
			Parameters:  idParams("bond_id", "Bond to release, from the unreleased bonds on file."),
			Run: func(ctx context.Context, userID string, args map[string]interface{}) (string, error) {
				id, err := strArg(args, "bond_id")
				if err != nil {
					return "", err
				}
				return exec.InitiateBondRelease(ctx, userID, id)
			},
		},
	}
}

func strArg(args map[string]interface{}, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required and must be a string", key)
	}
	return v, nil
}

// renderList serializes query results as compact JSON for the model.
func renderList[T any](key string, rows []T) (string, error) {
	data, err := json.Marshal(map[string]interface{}{
		"count": len(rows),
		key:     rows,
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", key, err)
	}
	return string(data), nil
}
