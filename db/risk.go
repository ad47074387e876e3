package db

import (
	"context"
	"fmt"

	"firmware-risk-scanner/models"
)

// UpsertRiskAssessment inserts or replaces the row of one equipment/firmware pair
func (db *Database) UpsertRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	if assessment.LastUpdated.IsZero() {
		assessment.LastUpdated = db.now()
	}
	assessment.LastUpdated = assessment.LastUpdated.UTC()

	query := `
		INSERT INTO risk_assessments (equipment_type, firmware_version, risk_percentage,
		                              severity, issue_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (equipment_type, firmware_version) DO UPDATE SET
			risk_percentage = excluded.risk_percentage,
			severity = excluded.severity,
			issue_count = excluded.issue_count,
			last_updated = excluded.last_updated
		RETURNING id
	`

	err := db.conn.QueryRowContext(ctx, query, assessment.EquipmentType, assessment.FirmwareVersion,
		assessment.RiskPercentage, assessment.Severity, assessment.IssueCount, assessment.LastUpdated,
	).Scan(&assessment.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert risk assessment %s/%s: %w",
			assessment.EquipmentType, assessment.FirmwareVersion, err)
	}

	return nil
}

// ListRiskAssessments returns assessments ordered by risk, optionally filtered by severity
func (db *Database) ListRiskAssessments(ctx context.Context, severity string, limit, offset int) ([]*models.RiskAssessment, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, equipment_type, firmware_version, risk_percentage, severity,
		       issue_count, last_updated
		FROM risk_assessments
	`
	var args []interface{}
	if severity != "" {
		query += " WHERE severity = ?"
		args = append(args, severity)
	}
	query += " ORDER BY risk_percentage DESC, equipment_type, firmware_version LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*models.RiskAssessment
	for rows.Next() {
		assessment := &models.RiskAssessment{}
		err := rows.Scan(
			&assessment.ID, &assessment.EquipmentType, &assessment.FirmwareVersion,
			&assessment.RiskPercentage, &assessment.Severity, &assessment.IssueCount,
			&assessment.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %w", err)
		}
		assessments = append(assessments, assessment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk assessments: %w", err)
	}

	return assessments, nil
}

// CountRiskAssessments returns the number of assessments, optionally filtered by severity
func (db *Database) CountRiskAssessments(ctx context.Context, severity string) (int, error) {
	query := "SELECT COUNT(*) FROM risk_assessments"
	var args []interface{}
	if severity != "" {
		query += " WHERE severity = ?"
		args = append(args, severity)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count risk assessments: %w", err)
	}
	return count, nil
}

// RiskDistribution returns the number of assessments per severity bucket
func (db *Database) RiskDistribution(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT severity, COUNT(*) FROM risk_assessments GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to query risk distribution: %w", err)
	}
	defer rows.Close()

	distribution := map[string]int{
		string(models.SeverityLow):    0,
		string(models.SeverityMedium): 0,
		string(models.SeverityHigh):   0,
	}
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan risk distribution: %w", err)
		}
		distribution[severity] = count
	}

	return distribution, rows.Err()
}
