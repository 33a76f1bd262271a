package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"
)

// LintResult groups lint findings for an exported template by severity.
// A template passes when it has no errors; warnings and informational
// findings are reported but do not fail the export.
type LintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the number of findings across all severities.
func (r LintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// Lint checks a written template file with cfn-lint. Linter failures are
// reported inside the result rather than as an error, so the caller always
// gets something to print.
func Lint(templatePath string) (*LintResult, error) {
	result := &LintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	if _, err := os.Stat(templatePath); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Template file not found: %s", templatePath))
		return result, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Linter error: %v", err))
		return result, nil
	}

	for _, match := range matches {
		switch formatted := formatMatch(match); match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	result.Passed = len(result.Errors) == 0
	return result, nil
}

// formatMatch renders one finding as "RULE: message (at Resources/Foo/...)".
func formatMatch(match lint.Match) string {
	if len(match.Location.Path) == 0 {
		return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
	}

	parts := make([]string, len(match.Location.Path))
	for i, p := range match.Location.Path {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, strings.Join(parts, "/"))
}
