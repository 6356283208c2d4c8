// package formatter renders run reports and ledger listings (text, JSON, Markdown, CSV) and writes run metrics
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
	"github.com/desertthunder/gmx/internal/tasks"
)

// Report formats accepted by [WriteReport].
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

type stepJSON struct {
	Group      string `json:"group"`
	Step       string `json:"step"`
	Phase      string `json:"phase"`
	Outcome    string `json:"outcome"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type reportJSON struct {
	RunID      string     `json:"run_id"`
	Service    string     `json:"service"`
	BaseURL    string     `json:"base_url"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Retries    int        `json:"retries"`
	Steps      []stepJSON `json:"steps"`
}

// ReportToJSON converts a report to indented JSON.
func ReportToJSON(report *tasks.Report) ([]byte, error) {
	out := reportJSON{
		RunID:      report.RunID,
		Service:    report.Service,
		BaseURL:    report.BaseURL,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Passed:     report.Count(tasks.Passed),
		Failed:     report.Count(tasks.Failed),
		Skipped:    report.Count(tasks.Skipped),
		Retries:    report.Retries,
		Steps:      make([]stepJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		out.Steps = append(out.Steps, stepJSON{
			Group:      res.Group,
			Step:       res.Step,
			Phase:      res.Phase.String(),
			Outcome:    res.Outcome.String(),
			Attempts:   res.Attempts,
			DurationMS: res.Duration.Milliseconds(),
			Message:    res.Message(),
		})
	}
	return shared.MarshalJSON(out, true)
}

// ReportToCSV converts a report to CSV with columns: Group, Step, Phase, Outcome, Attempts, DurationMS, Message
func ReportToCSV(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Group", "Step", "Phase", "Outcome", "Attempts", "DurationMS", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range report.Results {
		record := []string{
			res.Group,
			res.Step,
			res.Phase.String(),
			res.Outcome.String(),
			strconv.Itoa(res.Attempts),
			strconv.FormatInt(res.Duration.Milliseconds(), 10),
			res.Message(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToMarkdown converts a report to a Markdown document with a summary and a table per group.
func ReportToMarkdown(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Run %s\n\n", report.RunID))
	buf.WriteString(fmt.Sprintf("**Service:** %s\n\n", report.Service))
	if report.BaseURL != "" {
		buf.WriteString(fmt.Sprintf("**Base URL:** %s\n\n", report.BaseURL))
	}
	buf.WriteString(fmt.Sprintf("**Started:** %s\n\n", report.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Duration:** %s\n\n", shared.FormatDuration(report.Duration())))
	buf.WriteString(fmt.Sprintf("**Result:** %s\n\n", summary(report)))

	group := ""
	for i, res := range report.Results {
		if res.Group != group {
			group = res.Group
			buf.WriteString(fmt.Sprintf("## %s\n\n", group))
			buf.WriteString("| Step | Outcome | Attempts | Duration | Message |\n")
			buf.WriteString("|------|---------|----------|----------|---------|\n")
		}
		buf.WriteString(fmt.Sprintf("| %s | %s %s | %d | %s | %s |\n",
			res.Step,
			res.Outcome.Symbol(),
			res.Outcome,
			res.Attempts,
			shared.FormatDuration(res.Duration),
			escapeMarkdown(res.Message()),
		))
		if i == len(report.Results)-1 || report.Results[i+1].Group != group {
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ReportToText converts a report to plain text, one line per step followed by a summary.
//
// Format: "✓ upload-auth/song_create (1.2s, 3 attempts)"
func ReportToText(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Run %s against %s\n\n", report.RunID, report.Service))

	for _, res := range report.Results {
		buf.WriteString(fmt.Sprintf("%s %s/%s (%s", res.Outcome.Symbol(), res.Group, res.Step, shared.FormatDuration(res.Duration)))
		if res.Attempts > 1 {
			buf.WriteString(", " + shared.Pluralize(res.Attempts, "attempt"))
		}
		buf.WriteString(")\n")
		if msg := res.Message(); msg != "" {
			buf.WriteString(fmt.Sprintf("    %s\n", msg))
		}
	}

	buf.WriteString(fmt.Sprintf("\n%s in %s\n", summary(report), shared.FormatDuration(report.Duration())))
	return buf.Bytes(), nil
}

// WriteReport renders report in format and writes it to w.
func WriteReport(w io.Writer, report *tasks.Report, format string) error {
	if report == nil {
		return fmt.Errorf("%w: no report", shared.ErrMissingArgument)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "", FormatText:
		data, err = ReportToText(report)
	case FormatJSON:
		data, err = ReportToJSON(report)
	case FormatMarkdown:
		data, err = ReportToMarkdown(report)
	case FormatCSV:
		data, err = ReportToCSV(report)
	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	_, err = w.Write(data)
	return err
}

// WriteReportFile writes report to path in format.
//
// Defaults to run_{id}.{ext} when path is empty and returns the path written.
func WriteReportFile(report *tasks.Report, format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("run_%s.%s", report.RunID, extension(format))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, report, format); err != nil {
		return "", err
	}
	return path, nil
}

// RunsToText lists ledger runs, newest first, one per line.
//
// Format: "#12 3f2a9c1d passed 14/0/1 (retries 3) 2025-01-02T15:04:05Z 4.1s"
func RunsToText(runs []*models.Run) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded\n")
		return buf.Bytes()
	}

	for _, run := range runs {
		id := run.ID()
		if len(id) > 8 {
			id = id[:8]
		}
		duration := "-"
		if run.FinishedAt() != nil {
			duration = shared.FormatDuration(run.Duration())
		}
		buf.WriteString(fmt.Sprintf("#%d %s %s %d/%d/%d (retries %d) %s %s\n",
			run.Sequence(),
			id,
			run.Status(),
			run.Passed(), run.Failed(), run.Skipped(),
			run.Retries(),
			run.StartedAt().UTC().Format(time.RFC3339),
			duration,
		))
	}
	return buf.Bytes()
}

// StepsToText lists the recorded steps of a single run.
func StepsToText(steps []*models.StepResult) []byte {
	var buf bytes.Buffer
	for _, s := range steps {
		buf.WriteString(fmt.Sprintf("%3d %-16s %-24s %-8s %s\n",
			s.Position(), s.Group(), s.Step(), s.Outcome(), shared.FormatDuration(s.Duration())))
		if s.Message() != "" {
			buf.WriteString(fmt.Sprintf("    %s\n", s.Message()))
		}
	}
	return buf.Bytes()
}

func summary(report *tasks.Report) string {
	status := "PASSED"
	if report.Failed() {
		status = "FAILED"
	}
	return fmt.Sprintf("%s: %d passed, %d failed, %d skipped, %s",
		status,
		report.Count(tasks.Passed),
		report.Count(tasks.Failed),
		report.Count(tasks.Skipped),
		shared.Pluralize(report.Retries, "retry wait"),
	)
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func extension(format string) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	default:
		return "txt"
	}
}
