package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"firmware-risk-scanner/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	classifyTitle    string
	classifyTaxonomy string
	classifyOutput   string
	dumpTaxonomy     bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Dry-run the classifier on a piece of text",
	Long: `Classify runs the firmware classifier on the given text without touching
the database or the network. The text is read from the arguments or, when
none are given, from standard input.

Examples:
  firmware-risk-scanner classify --title "UDM firmware 3.2.7" "crashes every night"
  echo "switch firmware update broke vlan config" | firmware-risk-scanner classify
  firmware-risk-scanner classify --dump-taxonomy > taxonomy.yaml`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "Post title")
	classifyCmd.Flags().StringVar(&classifyTaxonomy, "taxonomy", "", "Taxonomy YAML file (defaults to the built-in rules)")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "table", "Output format (table, json, yaml)")
	classifyCmd.Flags().BoolVar(&dumpTaxonomy, "dump-taxonomy", false, "Print the effective taxonomy as YAML and exit")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(classifyOutput); err != nil {
		return err
	}

	classif, err := newClassifier(classifyTaxonomy)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dumpTaxonomy {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(classif.Taxonomy())
	}

	body := strings.Join(args, " ")
	if body == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		body = strings.TrimSpace(string(data))
	}
	if body == "" && classifyTitle == "" {
		return fmt.Errorf("no text to classify")
	}

	issues := classif.Classify(&models.Post{ID: "dry-run", Title: classifyTitle, Body: body})
	return printIssues(out, issues, classifyOutput)
}

func printIssues(w io.Writer, issues []*models.Issue, format string) error {
	if issues == nil {
		issues = []*models.Issue{}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(issues)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(issues)
	}

	if len(issues) == 0 {
		_, err := fmt.Fprintln(w, "No firmware issues detected")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Equipment\tFirmware\tIssue\tSeverity\tMatched")
	for _, issue := range issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			issue.EquipmentType, issue.FirmwareVersion, issue.IssueType, issue.Severity, issue.ExtractedFrom)
	}
	return tw.Flush()
}

