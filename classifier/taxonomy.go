package classifier

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"firmware-risk-scanner/models"

	"gopkg.in/yaml.v3"
)

// Category maps one taxonomy value to the keywords that select it
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is the ordered rule data the classifier matches against.
// Order matters: equipment resolution takes the first matching entry,
// issue types are reported in table order.
type Taxonomy struct {
	Version          string     `yaml:"version"`
	FirmwareKeywords []string   `yaml:"firmware_keywords"`
	Equipment        []Category `yaml:"equipment"`
	IssueTypes       []Category `yaml:"issue_types"`
	HighSeverity     []string   `yaml:"high_severity"`
	MediumSeverity   []string   `yaml:"medium_severity"`
	VersionPatterns  []string   `yaml:"version_patterns"`
}

// DefaultTaxonomy returns the built-in UniFi taxonomy
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		Version: "1",
		FirmwareKeywords: []string{
			"firmware", "update", "upgrade", "version", "flash", "boot", "brick",
			"downgrade", "rollback", "beta", "stable", "release", "patch",
		},
		Equipment: []Category{
			{Name: string(models.EquipmentRouter), Keywords: []string{"udm", "dream machine", "udr", "gateway"}},
			{Name: string(models.EquipmentSwitch), Keywords: []string{"switch", "usw", "aggregation"}},
			{Name: string(models.EquipmentAccessPoint), Keywords: []string{"access point", "ap", "wifi", "wireless", "u6", "u7"}},
			{Name: string(models.EquipmentCamera), Keywords: []string{"camera", "protect", "nvr", "surveillance"}},
			{Name: string(models.EquipmentSecurityGateway), Keywords: []string{"usg", "security gateway"}},
			{Name: string(models.EquipmentNVR), Keywords: []string{"nvr", "network video recorder"}},
		},
		IssueTypes: []Category{
			{Name: string(models.IssueConnectivity), Keywords: []string{"disconnect", "offline", "connection", "network", "ping"}},
			{Name: string(models.IssuePerformance), Keywords: []string{"slow", "latency", "speed", "throughput", "lag"}},
			{Name: string(models.IssueStability), Keywords: []string{"crash", "reboot", "freeze", "hang", "unstable"}},
			{Name: string(models.IssueSecurity), Keywords: []string{"vulnerability", "exploit", "security", "patch", "cve"}},
			{Name: string(models.IssueConfiguration), Keywords: []string{"config", "setting", "setup", "configure"}},
			{Name: string(models.IssueHardware), Keywords: []string{"hardware", "fan", "temperature", "power", "led"}},
		},
		HighSeverity:   []string{"brick", "crash", "dead", "broke", "unusable", "critical"},
		MediumSeverity: []string{"problem", "issue", "bug", "error", "fail"},
		VersionPatterns: []string{
			`(?:version|v|firmware)\s*(\d+\.\d+\.\d+)`,
			`(\d+\.\d+\.\d+)`,
		},
	}
}

// LoadTaxonomyFile reads a taxonomy from a YAML file. Sections left empty in
// the file keep their built-in defaults.
func LoadTaxonomyFile(filePath string) (*Taxonomy, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file %s: %w", filePath, err)
	}

	taxonomy, err := ParseTaxonomy(data)
	if err != nil {
		return nil, fmt.Errorf("invalid taxonomy in %s: %w", filePath, err)
	}
	return taxonomy, nil
}

// ParseTaxonomy decodes YAML taxonomy data on top of the defaults
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var parsed Taxonomy
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}

	taxonomy := DefaultTaxonomy()
	if parsed.Version != "" {
		taxonomy.Version = parsed.Version
	}
	if len(parsed.FirmwareKeywords) > 0 {
		taxonomy.FirmwareKeywords = parsed.FirmwareKeywords
	}
	if len(parsed.Equipment) > 0 {
		taxonomy.Equipment = parsed.Equipment
	}
	if len(parsed.IssueTypes) > 0 {
		taxonomy.IssueTypes = parsed.IssueTypes
	}
	if len(parsed.HighSeverity) > 0 {
		taxonomy.HighSeverity = parsed.HighSeverity
	}
	if len(parsed.MediumSeverity) > 0 {
		taxonomy.MediumSeverity = parsed.MediumSeverity
	}
	if len(parsed.VersionPatterns) > 0 {
		taxonomy.VersionPatterns = parsed.VersionPatterns
	}

	taxonomy.normalize()
	if err := taxonomy.Validate(); err != nil {
		return nil, err
	}
	return taxonomy, nil
}

// Validate checks that every table is usable by the classifier
func (t *Taxonomy) Validate() error {
	if len(t.FirmwareKeywords) == 0 {
		return fmt.Errorf("firmware_keywords must not be empty")
	}
	if len(t.Equipment) == 0 {
		return fmt.Errorf("equipment must not be empty")
	}

	seen := make(map[string]bool)
	for i, category := range t.Equipment {
		if err := validateCategory("equipment", i, category); err != nil {
			return err
		}
		if seen[category.Name] {
			return fmt.Errorf("equipment[%d]: duplicate name %q", i, category.Name)
		}
		seen[category.Name] = true
	}

	seen = make(map[string]bool)
	for i, category := range t.IssueTypes {
		if err := validateCategory("issue_types", i, category); err != nil {
			return err
		}
		if category.Name == string(models.IssueOther) {
			return fmt.Errorf("issue_types[%d]: %q is reserved for the fallback category", i, category.Name)
		}
		if seen[category.Name] {
			return fmt.Errorf("issue_types[%d]: duplicate name %q", i, category.Name)
		}
		seen[category.Name] = true
	}

	for i, pattern := range t.VersionPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("version_patterns[%d]: %w", i, err)
		}
		if re.NumSubexp() > 1 {
			return fmt.Errorf("version_patterns[%d]: at most one capture group allowed", i)
		}
	}

	return nil
}

func validateCategory(section string, index int, category Category) error {
	if category.Name == "" {
		return fmt.Errorf("%s[%d]: name is required", section, index)
	}
	if len(category.Keywords) == 0 {
		return fmt.Errorf("%s[%d] %q: at least one keyword is required", section, index, category.Name)
	}
	return nil
}

// normalize case-folds every keyword; input text is matched lower-cased
func (t *Taxonomy) normalize() {
	lowerAll := func(keywords []string) []string {
		out := make([]string, 0, len(keywords))
		for _, keyword := range keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" {
				out = append(out, keyword)
			}
		}
		return out
	}

	t.FirmwareKeywords = lowerAll(t.FirmwareKeywords)
	t.HighSeverity = lowerAll(t.HighSeverity)
	t.MediumSeverity = lowerAll(t.MediumSeverity)
	for i := range t.Equipment {
		t.Equipment[i].Keywords = lowerAll(t.Equipment[i].Keywords)
	}
	for i := range t.IssueTypes {
		t.IssueTypes[i].Keywords = lowerAll(t.IssueTypes[i].Keywords)
	}
}

// clone returns a deep copy so a classifier never shares tables with its caller
func (t *Taxonomy) clone() *Taxonomy {
	copyCategories := func(in []Category) []Category {
		out := make([]Category, len(in))
		for i, c := range in {
			out[i] = Category{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)}
		}
		return out
	}

	return &Taxonomy{
		Version:          t.Version,
		FirmwareKeywords: append([]string(nil), t.FirmwareKeywords...),
		Equipment:        copyCategories(t.Equipment),
		IssueTypes:       copyCategories(t.IssueTypes),
		HighSeverity:     append([]string(nil), t.HighSeverity...),
		MediumSeverity:   append([]string(nil), t.MediumSeverity...),
		VersionPatterns:  append([]string(nil), t.VersionPatterns...),
	}
}

// SaveTaxonomyFile writes the taxonomy as YAML, for use as an override template
func SaveTaxonomyFile(t *Taxonomy, filePath string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal taxonomy: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write taxonomy file: %w", err)
	}
	return nil
}
