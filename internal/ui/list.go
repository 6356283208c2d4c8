package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/gmx/internal/shared"
	"github.com/desertthunder/gmx/internal/tasks"
)

var _ list.Item = stepItem{}

// stepItem wraps [tasks.StepResult] to implement [list.Item].
type stepItem struct {
	result tasks.StepResult
}

func (i stepItem) FilterValue() string { return i.result.Group + "/" + i.result.Step }
func (i stepItem) Title() string {
	return styles.Outcome(i.result.Outcome).Render(i.result.Outcome.Symbol()) + " " + i.FilterValue()
}

func (i stepItem) Description() string {
	parts := []string{i.result.Outcome.String()}
	if i.result.Outcome != tasks.Skipped {
		parts = append(parts, shared.FormatDuration(i.result.Duration))
	}
	if i.result.Attempts > 1 {
		parts = append(parts, shared.Pluralize(i.result.Attempts, "attempt"))
	}
	if msg := i.result.Message(); msg != "" {
		parts = append(parts, msg)
	}
	return strings.Join(parts, " • ")
}

func stepItems(report *tasks.Report) []list.Item {
	if report == nil {
		return nil
	}
	items := make([]list.Item, len(report.Results))
	for i, res := range report.Results {
		items[i] = stepItem{result: res}
	}
	return items
}

func resultsTitle(report *tasks.Report) string {
	return fmt.Sprintf("Run %s: %d passed, %d failed, %d skipped",
		shortID(report.RunID),
		report.Count(tasks.Passed),
		report.Count(tasks.Failed),
		report.Count(tasks.Skipped),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
