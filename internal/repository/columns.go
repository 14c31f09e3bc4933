// Package repository implements the domain repositories on PostgreSQL with pgx.
package repository

import (
	"strconv"
	"strings"
)

// Column lists shared by the queries of each table. They must match the
// schema in internal/database/migrations; the id column comes first.

// KnowledgeColumns defines the columns for the knowledge_base table.
var KnowledgeColumns = TableColumns{
	TableName: "knowledge_base",
	Columns: []string{
		"id",
		"section",
		"title",
		"content",
		"is_active",
		"priority",
		"created_at",
		"updated_at",
	},
}

// KnowledgeVersionColumns defines the columns for the knowledge_versions table.
var KnowledgeVersionColumns = TableColumns{
	TableName: "knowledge_versions",
	Columns: []string{
		"id",
		"knowledge_id",
		"version_number",
		"content",
		"created_by",
		"created_at",
	},
}

// LeadColumns defines the columns for the leads table.
var LeadColumns = TableColumns{
	TableName: "leads",
	Columns: []string{
		"id",
		"email",
		"name",
		"phone",
		"company",
		"screen_count",
		"app_type",
		"auth_level",
		"payment_needs",
		"additional_features",
		"design_style",
		"has_branding",
		"estimated_price_min",
		"estimated_price_max",
		"booking_scheduled",
		"booking_event_uri",
		"booking_scheduled_time",
		"status",
		"source",
		"utm_source",
		"utm_medium",
		"utm_campaign",
		"created_at",
	},
}

// QuoteColumns defines the columns for the quotes table.
var QuoteColumns = TableColumns{
	TableName: "quotes",
	Columns: []string{
		"id",
		"client_company",
		"client_contact",
		"client_email",
		"client_phone",
		"client_sector",
		"project_name",
		"problem_to_solve",
		"project_type",
		"target_users",
		"advanced_features",
		"selected_features",
		"selected_plan",
		"selected_packs",
		"extra_screens",
		"discount",
		"design_has_branding",
		"design_style",
		"design_primary_color",
		"design_secondary_color",
		"design_dark_mode",
		"design_animations",
		"deadline",
		"urgency",
		"maintenance",
		"notes_indispensable",
		"notes_nice_to_have",
		"notes_internal",
		"total_price",
		"monthly_maintenance",
		"status",
		"created_at",
		"updated_at",
	},
}

// AdminUserColumns defines the columns for the admin_users table.
var AdminUserColumns = TableColumns{
	TableName: "admin_users",
	Columns: []string{
		"id",
		"email",
		"password_hash",
		"role",
		"created_at",
		"updated_at",
	},
}

// SessionColumns defines the columns for the admin_sessions table.
var SessionColumns = TableColumns{
	TableName: "admin_sessions",
	Columns: []string{
		"id",
		"user_id",
		"token",
		"expires_at",
		"created_at",
	},
}

// TableColumns provides helper methods for generating SQL fragments.
type TableColumns struct {
	TableName string
	Columns   []string
}

// Select returns a comma-separated list of columns for SELECT queries.
// Example: "id, name, email, created_at"
func (tc TableColumns) Select() string {
	return strings.Join(tc.Columns, ", ")
}

// InsertColumns returns a comma-separated list of columns for INSERT queries.
func (tc TableColumns) InsertColumns() string {
	return tc.Select()
}

// Placeholders returns numbered placeholders for the columns.
// Example: "$1, $2, $3, $4" for 4 columns
func (tc TableColumns) Placeholders() string {
	placeholders := make([]string, len(tc.Columns))
	for i := range tc.Columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(placeholders, ", ")
}

// UpdateSet returns the SET clause for UPDATE queries, skipping the first
// column (the id, bound to $1).
// Example: "name = $2, email = $3, updated_at = $4"
func (tc TableColumns) UpdateSet() string {
	if len(tc.Columns) <= 1 {
		return ""
	}
	parts := make([]string, len(tc.Columns)-1)
	for i := 1; i < len(tc.Columns); i++ {
		parts[i-1] = tc.Columns[i] + " = $" + strconv.Itoa(i+1)
	}
	return strings.Join(parts, ", ")
}

// Count returns the number of columns.
func (tc TableColumns) Count() int {
	return len(tc.Columns)
}

// Without returns a new TableColumns excluding the specified columns.
func (tc TableColumns) Without(exclude ...string) TableColumns {
	excludeMap := make(map[string]bool, len(exclude))
	for _, col := range exclude {
		excludeMap[col] = true
	}

	filtered := make([]string, 0, len(tc.Columns))
	for _, col := range tc.Columns {
		if !excludeMap[col] {
			filtered = append(filtered, col)
		}
	}

	return TableColumns{
		TableName: tc.TableName,
		Columns:   filtered,
	}
}
