package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firmware-risk-scanner/config"
	"firmware-risk-scanner/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type emptySource struct{}

func (emptySource) FetchRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	return nil, nil
}

// resetFlags restores package flag variables between command executions
func resetFlags() {
	cfgFile = ""
	verbose = false
	outputFormat = "table"
	maxPosts = 0
	noNotify = false
	classifyTitle = ""
	classifyTaxonomy = ""
	classifyOutput = "table"
	dumpTaxonomy = false
	forceConfig = false
}

// executeCommand runs the root command with args and returns its output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// writeTestConfig writes a config file that keeps the database in a temp dir
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "database:\n  path: " + filepath.Join(dir, "scanner.db") + "\n" + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "scanner.db")},
		Scanner:  config.ScannerConfig{MaxPosts: 10, RiskWindowDays: 7},
	}
}

func TestGetVersionString(t *testing.T) {
	// Test with empty values
	appVersion = ""
	appCommit = ""
	appDate = ""

	version := getVersionString()
	assert.Contains(t, version, "unknown")

	// Test with actual values
	appVersion = "1.0.0"
	appCommit = "abc123"
	appDate = "2025-01-01"

	version = getVersionString()
	assert.Contains(t, version, "1.0.0")
	assert.Contains(t, version, "abc123")
	assert.Contains(t, version, "2025-01-01")

	// Reset for other tests
	appVersion = ""
	appCommit = ""
	appDate = ""
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := executeCommand(t, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestValidateOutputFormat(t *testing.T) {
	for _, format := range []string{"table", "json", "yaml"} {
		assert.NoError(t, validateOutputFormat(format))
	}
	assert.Error(t, validateOutputFormat("xml"))
}

func TestPrintScanResult(t *testing.T) {
	result := &models.ScanResult{
		RunID:          "run-1",
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		PostsScanned:   12,
		NewPosts:       3,
		IssuesFound:    2,
		ScanDurationMS: 1500,
		Success:        false,
		ErrorMessage:   "failed to fetch posts: timeout",
		Trigger:        models.TriggerCLI,
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printScanResult(&buf, result, "table"))
		out := buf.String()
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "failed")
		assert.Contains(t, out, "1500ms")
		assert.Contains(t, out, "failed to fetch posts: timeout")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printScanResult(&buf, result, "json"))

		var decoded models.ScanResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, 12, decoded.PostsScanned)
		assert.Equal(t, models.TriggerCLI, decoded.Trigger)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printScanResult(&buf, result, "yaml"))
		assert.Contains(t, buf.String(), "runid: run-1")
	})
}

func TestClassifyCommand_Args(t *testing.T) {
	out, err := executeCommand(t, "", "classify", "--title", "UDM firmware 3.2.7", "crashes every night")
	require.NoError(t, err)

	assert.Contains(t, out, "router")
	assert.Contains(t, out, "3.2.7")
	assert.Contains(t, out, "stability")
	assert.Contains(t, out, "high")
}

func TestClassifyCommand_StdinJSON(t *testing.T) {
	out, err := executeCommand(t, "switch firmware update broke vlan config\n", "classify", "-o", "json")
	require.NoError(t, err)

	var issues []*models.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, models.EquipmentSwitch, issues[0].EquipmentType)
	assert.Equal(t, models.IssueConfiguration, issues[0].IssueType)
	assert.Equal(t, models.SeverityHigh, issues[0].Severity)
	assert.Equal(t, models.UnknownFirmware, issues[0].FirmwareVersion)
}

func TestClassifyCommand_NotFirmwareRelated(t *testing.T) {
	out, err := executeCommand(t, "", "classify", "my new rack arrived today")
	require.NoError(t, err)
	assert.Contains(t, out, "No firmware issues detected")
}

func TestClassifyCommand_NoInput(t *testing.T) {
	_, err := executeCommand(t, "", "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text to classify")
}

func TestClassifyCommand_DumpTaxonomy(t *testing.T) {
	out, err := executeCommand(t, "", "classify", "--dump-taxonomy")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "firmware_keywords")
	assert.Contains(t, decoded, "equipment")
	assert.Contains(t, decoded, "version_patterns")
}

func TestClassifyCommand_CustomTaxonomy(t *testing.T) {
	taxonomyPath := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(taxonomyPath, []byte(`
version: "2"
equipment:
  - name: router
    keywords: [edgerouter]
`), 0644))

	out, err := executeCommand(t, "", "classify", "--taxonomy", taxonomyPath, "-o", "json", "edgerouter firmware crash")
	require.NoError(t, err)

	var issues []*models.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, models.EquipmentRouter, issues[0].EquipmentType)

	out, err = executeCommand(t, "", "classify", "--taxonomy", taxonomyPath, "udm firmware crash")
	require.NoError(t, err)
	assert.Contains(t, out, "No firmware issues detected")
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.yaml")

	out, err := executeCommand(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_posts: 200")

	_, err = executeCommand(t, "", "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommand(t, "", "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestMigrateCommands(t *testing.T) {
	configPath := writeTestConfig(t, "")

	_, err := executeCommand(t, "", "migrate", "up", "--config", configPath)
	require.NoError(t, err)

	out, err := executeCommand(t, "", "migrate", "status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Version")
	assert.Contains(t, out, "001")
	assert.Contains(t, out, "Applied")
	assert.NotContains(t, out, "Pending")
}

func TestScanCommand_MissingCredentials(t *testing.T) {
	configPath := writeTestConfig(t, "")

	_, err := executeCommand(t, "", "scan", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create Reddit client")
}

func TestScanCommand_InvalidOutput(t *testing.T) {
	_, err := executeCommand(t, "", "scan", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestInitializeComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notification = config.NotificationConfig{
		SlackWebhookURL: "https://hooks.slack.com/services/test",
		Username:        "Firmware Risk Scanner",
	}

	app, err := initializeComponents(cfg, emptySource{})
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Database)
	assert.NotNil(t, app.Notifier)
	assert.Equal(t, 7*24*time.Hour, app.Aggregator.Window())

	// no posts and no high risk assessments, so nothing is sent to Slack
	result, err := app.Orchestrator.Run(context.Background(), models.TriggerCLI)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.PostsScanned)

	count, err := app.Database.CountScanResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInitializeComponents_WithoutNotifier(t *testing.T) {
	app, err := initializeComponents(testConfig(t), emptySource{})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Notifier)
}

func TestInitializeComponents_BadTaxonomy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Taxonomy.File = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initializeComponents(cfg, emptySource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load taxonomy")
}
