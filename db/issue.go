package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"firmware-risk-scanner/models"
)

// IssueFilter narrows ListIssues. Zero values mean "any".
type IssueFilter struct {
	EquipmentType   string
	Severity        string
	FirmwareVersion string
	Limit           int
	Offset          int
}

// UpsertIssue stores a classified issue keyed by (post_id, issue_type,
// firmware_version). A repeated classification refreshes the derived fields
// of the existing row and keeps its created_at.
func (db *Database) UpsertIssue(ctx context.Context, issue *models.Issue) error {
	if issue.FirmwareVersion == "" {
		issue.FirmwareVersion = models.UnknownFirmware
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = db.now()
	}
	// stored text must sort the same way as the UTC bound in GroupIssuesSince
	issue.CreatedAt = issue.CreatedAt.UTC()

	query := `
		INSERT INTO issues (post_id, equipment_type, firmware_version, issue_type, severity,
		                    description, extracted_from, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id, issue_type, firmware_version) DO UPDATE SET
			equipment_type = excluded.equipment_type,
			severity = excluded.severity,
			description = excluded.description,
			extracted_from = excluded.extracted_from
	`

	_, err := db.conn.ExecContext(ctx, query, issue.PostID, issue.EquipmentType, issue.FirmwareVersion,
		issue.IssueType, issue.Severity, issue.Description, issue.ExtractedFrom, issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert issue %s: %w", issue.Key(), err)
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT id, created_at FROM issues
		WHERE post_id = ? AND issue_type = ? AND firmware_version = ?
	`, issue.PostID, issue.IssueType, issue.FirmwareVersion).Scan(&issue.ID, &issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read back issue %s: %w", issue.Key(), err)
	}

	return nil
}

// GetIssue retrieves an issue by id
func (db *Database) GetIssue(ctx context.Context, id int) (*models.Issue, error) {
	query := `
		SELECT id, post_id, equipment_type, firmware_version, issue_type, severity,
		       description, extracted_from, created_at
		FROM issues WHERE id = ?
	`

	issue := &models.Issue{}
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&issue.ID, &issue.PostID, &issue.EquipmentType, &issue.FirmwareVersion,
		&issue.IssueType, &issue.Severity, &issue.Description, &issue.ExtractedFrom,
		&issue.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("issue %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return issue, nil
}

// ListIssues returns one page of issues, newest first, and the total match count
func (db *Database) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EquipmentType != "" {
		conditions = append(conditions, "equipment_type = ?")
		args = append(args, filter.EquipmentType)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.FirmwareVersion != "" {
		conditions = append(conditions, "firmware_version = ?")
		args = append(args, filter.FirmwareVersion)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count issues: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, post_id, equipment_type, firmware_version, issue_type, severity,
		       description, extracted_from, created_at
		FROM issues ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		issue := &models.Issue{}
		err := rows.Scan(
			&issue.ID, &issue.PostID, &issue.EquipmentType, &issue.FirmwareVersion,
			&issue.IssueType, &issue.Severity, &issue.Description, &issue.ExtractedFrom,
			&issue.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating issues: %w", err)
	}

	return issues, total, nil
}

// EquipmentTypeCounts returns the number of issues per equipment type
func (db *Database) EquipmentTypeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT equipment_type, COUNT(*)
		FROM issues
		GROUP BY equipment_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment types: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var equipment string
		var count int
		if err := rows.Scan(&equipment, &count); err != nil {
			return nil, fmt.Errorf("failed to scan equipment type: %w", err)
		}
		counts[equipment] = count
	}

	return counts, rows.Err()
}

// GroupIssuesSince groups issues created at or after since by equipment type
// and firmware version, with the mean severity weight of each group
func (db *Database) GroupIssuesSince(ctx context.Context, since time.Time) ([]models.IssueGroup, error) {
	query := `
		SELECT equipment_type,
		       firmware_version,
		       COUNT(*) AS issue_count,
		       AVG(CASE
		           WHEN severity = 'high' THEN 3
		           WHEN severity = 'medium' THEN 2
		           ELSE 1
		       END) AS avg_severity
		FROM issues
		WHERE created_at >= ?
		GROUP BY equipment_type, firmware_version
		ORDER BY equipment_type, firmware_version
	`

	rows, err := db.conn.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to group issues: %w", err)
	}
	defer rows.Close()

	var groups []models.IssueGroup
	for rows.Next() {
		var group models.IssueGroup
		if err := rows.Scan(&group.EquipmentType, &group.FirmwareVersion, &group.IssueCount, &group.AvgSeverity); err != nil {
			return nil, fmt.Errorf("failed to scan issue group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue groups: %w", err)
	}

	return groups, nil
}
