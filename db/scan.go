package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firmware-risk-scanner/models"
)

const scanResultColumns = `id, run_id, timestamp, posts_scanned, new_posts, issues_found,
		       scan_duration_ms, success, error_message, trigger_source, created_at`

// CreateScanResult appends a scan audit record
func (db *Database) CreateScanResult(ctx context.Context, result *models.ScanResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = db.now()
	}
	result.CreatedAt = result.CreatedAt.UTC()
	result.Timestamp = result.Timestamp.UTC()

	query := `
		INSERT INTO scan_results (run_id, timestamp, posts_scanned, new_posts, issues_found,
		                          scan_duration_ms, success, error_message, trigger_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	execResult, err := db.conn.ExecContext(ctx, query, result.RunID, result.Timestamp,
		result.PostsScanned, result.NewPosts, result.IssuesFound, result.ScanDurationMS,
		result.Success, result.ErrorMessage, result.Trigger, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scan result: %w", err)
	}

	id, err := execResult.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get scan result ID: %w", err)
	}

	result.ID = int(id)
	return nil
}

// GetLatestScanResults returns scan results newest first
func (db *Database) GetLatestScanResults(ctx context.Context, limit, offset int) ([]*models.ScanResult, error) {
	query := `SELECT ` + scanResultColumns + `
		FROM scan_results
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	var results []*models.ScanResult
	for rows.Next() {
		result, err := scanScanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan results: %w", err)
	}

	return results, nil
}

// GetLatestScanResult returns the most recent scan result
func (db *Database) GetLatestScanResult(ctx context.Context) (*models.ScanResult, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+scanResultColumns+`
		FROM scan_results
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`)

	result, err := scanScanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scan result: %w", ErrNotFound)
		}
		return nil, err
	}
	return result, nil
}

// CountScanResults returns the number of recorded runs
func (db *Database) CountScanResults(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scan_results").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scan results: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScanResult(row rowScanner) (*models.ScanResult, error) {
	result := &models.ScanResult{}
	err := row.Scan(
		&result.ID, &result.RunID, &result.Timestamp, &result.PostsScanned, &result.NewPosts,
		&result.IssuesFound, &result.ScanDurationMS, &result.Success, &result.ErrorMessage,
		&result.Trigger, &result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan scan result: %w", err)
	}
	return result, nil
}
