package models

import "time"

// RiskAssessment is the aggregate risk for one equipment/firmware pair
type RiskAssessment struct {
	ID              int           `json:"id" db:"id"`
	EquipmentType   EquipmentType `json:"equipment_type" db:"equipment_type"`
	FirmwareVersion string        `json:"firmware_version" db:"firmware_version"`
	RiskPercentage  int           `json:"risk_percentage" db:"risk_percentage"`
	Severity        Severity      `json:"severity" db:"severity"`
	IssueCount      int           `json:"issue_count" db:"issue_count"`
	LastUpdated     time.Time     `json:"last_updated" db:"last_updated"`
}

// IssueGroup holds the issues of one equipment/firmware pair inside the window
type IssueGroup struct {
	EquipmentType   EquipmentType `json:"equipment_type"`
	FirmwareVersion string        `json:"firmware_version"`
	IssueCount      int           `json:"issue_count"`
	AvgSeverity     float64       `json:"avg_severity"`
}
