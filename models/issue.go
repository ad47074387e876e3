package models

import "time"

// EquipmentType identifies a class of network equipment
type EquipmentType string

const (
	EquipmentRouter          EquipmentType = "router"
	EquipmentSwitch          EquipmentType = "switch"
	EquipmentAccessPoint     EquipmentType = "access-point"
	EquipmentSecurityGateway EquipmentType = "security-gateway"
	EquipmentCamera          EquipmentType = "camera"
	EquipmentNVR             EquipmentType = "nvr"
)

// IssueType is the category of a classified finding
type IssueType string

const (
	IssueConnectivity  IssueType = "connectivity"
	IssuePerformance   IssueType = "performance"
	IssueStability     IssueType = "stability"
	IssueSecurity      IssueType = "security"
	IssueConfiguration IssueType = "configuration"
	IssueHardware      IssueType = "hardware"
	IssueOther         IssueType = "other"
)

// Severity levels shared by issues and risk assessments
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// UnknownFirmware is stored when no version could be extracted from a post.
const UnknownFirmware = "unknown"

// Score returns the weight of a severity used by the risk aggregator
func (s Severity) Score() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// IsValid reports whether the severity is one of the known levels
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Issue represents a single firmware finding extracted from a post
type Issue struct {
	ID              int           `json:"id" db:"id"`
	PostID          string        `json:"post_id" db:"post_id"`
	EquipmentType   EquipmentType `json:"equipment_type" db:"equipment_type"`
	FirmwareVersion string        `json:"firmware_version" db:"firmware_version"`
	IssueType       IssueType     `json:"issue_type" db:"issue_type"`
	Severity        Severity      `json:"severity" db:"severity"`
	Description     string        `json:"description" db:"description"`
	ExtractedFrom   string        `json:"extracted_from" db:"extracted_from"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// Key identifies an issue across repeated classification runs
func (i *Issue) Key() string {
	return i.PostID + "/" + string(i.IssueType) + "/" + i.FirmwareVersion
}
