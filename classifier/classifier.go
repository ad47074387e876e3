package classifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"firmware-risk-scanner/models"
)

const (
	descriptionMinBody = 20
	descriptionMaxLen  = 200
	excerptRadius      = 40
)

// Classifier maps post text to firmware issues. It holds only read-only data
// and is safe for concurrent use.
type Classifier struct {
	taxonomy        *Taxonomy
	versionPatterns []*regexp.Regexp
}

// New builds a classifier from a taxonomy. A nil taxonomy selects the default.
func New(taxonomy *Taxonomy) (*Classifier, error) {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	t := taxonomy.clone()
	t.normalize()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}

	patterns := make([]*regexp.Regexp, 0, len(t.VersionPatterns))
	for _, pattern := range t.VersionPatterns {
		// input is already case-folded; (?i) keeps custom patterns tolerant
		patterns = append(patterns, regexp.MustCompile("(?i)"+pattern))
	}

	return &Classifier{taxonomy: t, versionPatterns: patterns}, nil
}

// Default returns a classifier over the built-in taxonomy
func Default() *Classifier {
	c, err := New(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// Taxonomy returns a copy of the rule tables in use
func (c *Classifier) Taxonomy() *Taxonomy {
	return c.taxonomy.clone()
}

// Classify returns one issue per detected issue type, or nil when the post is
// not firmware related or names no known equipment
func (c *Classifier) Classify(post *models.Post) []*models.Issue {
	text := post.Text()

	if !containsAny(text, c.taxonomy.FirmwareKeywords) {
		return nil
	}

	equipment, ok := c.ResolveEquipment(text)
	if !ok {
		return nil
	}

	version := c.ExtractFirmwareVersion(text)
	severity := c.DetermineSeverity(text)
	description := ExtractDescription(post.Title, post.Body)

	var issues []*models.Issue
	for _, match := range c.ResolveIssueTypes(text) {
		issues = append(issues, &models.Issue{
			PostID:          post.ID,
			EquipmentType:   equipment,
			FirmwareVersion: version,
			IssueType:       match.IssueType,
			Severity:        severity,
			Description:     description,
			ExtractedFrom:   match.Source,
		})
	}

	return issues
}

// ClassifyAll classifies every post of a batch
func (c *Classifier) ClassifyAll(posts []*models.Post) []*models.Issue {
	var issues []*models.Issue
	for _, post := range posts {
		issues = append(issues, c.Classify(post)...)
	}
	return issues
}

// IsFirmwareRelated reports whether text passes the relevance gate
func (c *Classifier) IsFirmwareRelated(text string) bool {
	return containsAny(strings.ToLower(text), c.taxonomy.FirmwareKeywords)
}

// ResolveEquipment returns the first equipment type whose keywords occur in text
func (c *Classifier) ResolveEquipment(text string) (models.EquipmentType, bool) {
	for _, category := range c.taxonomy.Equipment {
		if containsAny(text, category.Keywords) {
			return models.EquipmentType(category.Name), true
		}
	}
	return "", false
}

// ExtractFirmwareVersion applies the version patterns in order and returns the
// first match, or models.UnknownFirmware
func (c *Classifier) ExtractFirmwareVersion(text string) string {
	for _, re := range c.versionPatterns {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if len(match) > 1 && match[1] != "" {
			return match[1]
		}
		return match[0]
	}
	return models.UnknownFirmware
}

// IssueMatch is one resolved issue type with the text it was matched on
type IssueMatch struct {
	IssueType models.IssueType
	Keyword   string
	Source    string
}

// ResolveIssueTypes collects every issue type whose keywords occur in text,
// falling back to a single "other" match
func (c *Classifier) ResolveIssueTypes(text string) []IssueMatch {
	var matches []IssueMatch
	for _, category := range c.taxonomy.IssueTypes {
		if keyword, ok := firstMatch(text, category.Keywords); ok {
			matches = append(matches, IssueMatch{
				IssueType: models.IssueType(category.Name),
				Keyword:   keyword,
				Source:    excerpt(text, keyword),
			})
		}
	}

	if len(matches) == 0 {
		keyword, _ := firstMatch(text, c.taxonomy.FirmwareKeywords)
		matches = append(matches, IssueMatch{
			IssueType: models.IssueOther,
			Keyword:   keyword,
			Source:    excerpt(text, keyword),
		})
	}

	return matches
}

// DetermineSeverity evaluates high keywords, then medium keywords, else low
func (c *Classifier) DetermineSeverity(text string) models.Severity {
	if containsAny(text, c.taxonomy.HighSeverity) {
		return models.SeverityHigh
	}
	if containsAny(text, c.taxonomy.MediumSeverity) {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// ExtractDescription prefers the first 200 characters of a body longer than
// 20 characters and falls back to the title
func ExtractDescription(title, body string) string {
	if utf8.RuneCountInString(body) <= descriptionMinBody {
		return title
	}

	runes := []rune(body)
	if len(runes) > descriptionMaxLen {
		return string(runes[:descriptionMaxLen]) + "..."
	}
	return body
}

func containsAny(text string, keywords []string) bool {
	_, ok := firstMatch(text, keywords)
	return ok
}

func firstMatch(text string, keywords []string) (string, bool) {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// excerpt returns the text surrounding the first occurrence of keyword
func excerpt(text, keyword string) string {
	idx := strings.Index(text, keyword)
	if keyword == "" || idx < 0 {
		return strings.TrimSpace(text)
	}

	start := idx - excerptRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(keyword) + excerptRadius
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	return strings.TrimSpace(text[start:end])
}
