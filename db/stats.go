package db

import (
	"context"
	"fmt"
)

// Stats summarises the core tables for the dashboard
type Stats struct {
	TotalPosts        int            `json:"total_posts"`
	ProcessedPosts    int            `json:"processed_posts"`
	TotalIssues       int            `json:"total_issues"`
	IssuesBySeverity  map[string]int `json:"issues_by_severity"`
	TotalAssessments  int            `json:"total_assessments"`
	HighRiskFirmwares int            `json:"high_risk_firmwares"`
	TotalScans        int            `json:"total_scans"`
}

// GetStats computes the dashboard summary
func (db *Database) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{IssuesBySeverity: make(map[string]int)}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM posts", &stats.TotalPosts},
		{"SELECT COUNT(*) FROM posts WHERE processed = TRUE", &stats.ProcessedPosts},
		{"SELECT COUNT(*) FROM issues", &stats.TotalIssues},
		{"SELECT COUNT(*) FROM risk_assessments", &stats.TotalAssessments},
		{"SELECT COUNT(*) FROM risk_assessments WHERE severity = 'high'", &stats.HighRiskFirmwares},
		{"SELECT COUNT(*) FROM scan_results", &stats.TotalScans},
	}
	for _, c := range counts {
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT severity, COUNT(*) FROM issues GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to query issue severities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan issue severity: %w", err)
		}
		stats.IssuesBySeverity[severity] = count
	}

	return stats, rows.Err()
}
