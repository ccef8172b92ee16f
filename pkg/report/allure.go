package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/selenium-runner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Parameters    []AllureParameter   `json:"parameters"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureParameter is one data-driven parameter of a test result.
type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
	Flaky   bool   `json:"flaky,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor holds executor branding info.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ReportName string `json:"reportName"`
	BuildName  string `json:"buildName,omitempty"`
}

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
func GenerateAllure(reportDir string) error {
	index, entries, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	byScenario := entriesByScenario(entries)
	for i := range index.Scenarios {
		sc := &index.Scenarios[i]
		attempts := byScenario[sc.ID]
		result := buildAllureResult(sc, attempts, index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", sc.ID, err)
		}
		resultPath := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", sc.ID, err)
		}
		copyAllureAttachments(reportDir, allureDir, attempts)
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return err
	}
	return writeAllureExecutor(allureDir, index)
}

// buildAllureResult builds one result per scenario; each attempt becomes a step.
func buildAllureResult(sc *ScenarioEntry, attempts []EntryDetail, index *Index) AllureResult {
	var startMs, stopMs int64
	if sc.StartTime != nil {
		startMs = sc.StartTime.UnixMilli()
	}
	if sc.EndTime != nil {
		stopMs = sc.EndTime.UnixMilli()
	} else if sc.StartTime != nil && sc.Duration != nil {
		stopMs = startMs + *sc.Duration
	}

	labels := []AllureLabel{
		{Name: "suite", Value: sc.Name},
		{Name: "framework", Value: "selenium"},
		{Name: "severity", Value: "normal"},
	}
	if index.Browser.Name != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: index.Browser.Name})
	}
	if sc.Worker > 0 {
		labels = append(labels, AllureLabel{Name: "thread", Value: fmt.Sprintf("worker-%d", sc.Worker)})
	}

	var details AllureStatusDetails
	if sc.Error != nil {
		details.Message = *sc.Error
	}
	details.Flaky = sc.Status == StatusPassed && len(sc.AttemptHistory) > 1

	steps := make([]AllureStep, 0, len(attempts))
	var attachments []AllureAttachment
	for _, a := range attempts {
		step := buildAllureStep(a)
		steps = append(steps, step)
		attachments = append(attachments, step.Attachments...)
	}

	return AllureResult{
		UUID:          fnv32aHash(index.RunID + ":" + sc.ID),
		HistoryID:     fnv32aHash(sc.ID),
		FullName:      sc.ID,
		Name:          sc.Name,
		Status:        mapAllureStatus(sc.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Parameters:    allureParameters(sc.Parameters),
		StatusDetails: details,
		Steps:         steps,
		Attachments:   attachments,
	}
}

func buildAllureStep(e EntryDetail) AllureStep {
	var stopMs int64
	startMs := e.StartTime.UnixMilli()
	if e.EndTime != nil {
		stopMs = e.EndTime.UnixMilli()
	}

	logSteps := make([]AllureStep, 0, len(e.Logs))
	var attachments []AllureAttachment
	for _, l := range e.Logs {
		ms := l.Time.UnixMilli()
		s := AllureStep{
			Name:   fmt.Sprintf("[%s] %s", strings.ToUpper(string(l.Severity)), l.Message),
			Status: "passed",
			Stage:  "finished",
			Start:  ms,
			Stop:   ms,
			Steps:  []AllureStep{},
		}
		if l.Error != "" {
			s.StatusDetails.Message = l.Error
		}
		if l.Artifact != nil && l.Artifact.Path != "" {
			att := AllureAttachment{
				Name:   l.Message,
				Source: allureAttachmentName(e.ID, l.Artifact.Path),
				Type:   l.Artifact.ContentType,
			}
			s.Attachments = []AllureAttachment{att}
			attachments = append(attachments, att)
		}
		logSteps = append(logSteps, s)
	}

	return AllureStep{
		Name:          fmt.Sprintf("Attempt %d (worker %d)", e.Attempt, e.Worker),
		Status:        mapAllureStatus(e.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		StatusDetails: AllureStatusDetails{Message: e.Error},
		Steps:         logSteps,
		Attachments:   attachments,
	}
}

func allureParameters(params map[string]string) []AllureParameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]AllureParameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, AllureParameter{Name: k, Value: params[k]})
	}
	return out
}

// allureAttachmentName flattens assets/<entry>/<file> into a unique name in allure-results.
func allureAttachmentName(entryID, path string) string {
	return entryID + "-" + filepath.Base(path)
}

// copyAllureAttachments copies screenshot files from assets subdirs into allure-results/ flat.
func copyAllureAttachments(reportDir, allureDir string, attempts []EntryDetail) {
	for _, e := range attempts {
		for _, a := range e.Artifacts() {
			if a.Path == "" {
				continue
			}
			src := filepath.Join(reportDir, a.Path)
			dst := filepath.Join(allureDir, allureAttachmentName(e.ID, a.Path))
			if err := copyFile(src, dst); err != nil {
				logger.Warn("failed to copy %s to %s: %v", src, dst, err)
			}
		}
	}
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not visible.*|.*no such element.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*"},
		{Name: "Assertion Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*does not match.*|.*expected.*"},
		{Name: "Browser Session", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*browser session.*|.*webdriver.*|.*chrome.*"},
		{Name: "Download", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*download.*|.*pdf.*"},
		{Name: "Scenario Panic", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*panicked.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with browser/runner metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=selenium\n")

	if index.Browser.Name != "" {
		b.WriteString(fmt.Sprintf("browser.name=%s\n", index.Browser.Name))
	}
	if index.Browser.Version != "" {
		b.WriteString(fmt.Sprintf("browser.version=%s\n", index.Browser.Version))
	}
	if index.Runner.Version != "" {
		b.WriteString(fmt.Sprintf("runner.version=%s\n", index.Runner.Version))
	}
	if index.Runner.Driver != "" {
		b.WriteString(fmt.Sprintf("runner.driver=%s\n", index.Runner.Driver))
	}
	b.WriteString(fmt.Sprintf("runner.parallelism=%d\n", index.Runner.Parallelism))
	b.WriteString(fmt.Sprintf("runner.retryLimit=%d\n", index.Runner.RetryLimit))

	keys := make([]string, 0, len(index.Environment))
	for k := range index.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s=%s\n", k, index.Environment[k]))
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// writeAllureExecutor writes executor.json.
func writeAllureExecutor(allureDir string, index *Index) error {
	executor := AllureExecutor{
		Name:       "selenium-runner",
		Type:       "selenium-runner",
		ReportName: index.Title,
		BuildName:  index.RunID,
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}
	path := filepath.Join(allureDir, "executor.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}
