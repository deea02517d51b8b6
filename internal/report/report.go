package report

import (
	"fmt"
	"sort"
	"strings"

	"stratforge/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// BuildMarkdown renders a run summary as a markdown document
func BuildMarkdown(s run.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pipeline Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- **Status:** %s\n", s.Status)
	fmt.Fprintf(&b, "- **Report:** %s\n", s.Report)
	if s.ReportDetail != "" {
		fmt.Fprintf(&b, "- **Detail:** %s\n", s.ReportDetail)
	}
	if s.Reason != "" {
		fmt.Fprintf(&b, "- **Reason:** %s\n", s.Reason)
	}
	if s.WinnerName != "" {
		fmt.Fprintf(&b, "- **Winner:** %s (`%s`)\n", s.WinnerName, s.WinnerID)
	}
	fmt.Fprintf(&b, "- **Started:** %s\n", s.CreatedAt)
	fmt.Fprintf(&b, "- **Completed:** %s\n", s.CompletedAt)
	if s.ResumedStages > 0 {
		fmt.Fprintf(&b, "- **Resumed at stage index:** %d\n", s.ResumedStages)
	}
	fmt.Fprintf(&b, "- **Plan hash:** `%s`\n", s.PlanHash)

	if len(s.Audits) > 0 {
		b.WriteString("\n## Stages\n\n")
		b.WriteString("| Stage | In | Out | Repairs | Warnings | Duration |\n")
		b.WriteString("|-------|----|-----|---------|----------|----------|\n")
		for _, a := range s.Audits {
			fmt.Fprintf(&b, "| %s | %d | %d | %d/%d | %d | %dms |\n",
				a.Stage, a.ArtifactsIn, a.ArtifactsOut,
				a.RepairsSucceeded, a.RepairsAttempted, a.Warnings, a.DurationMs)
		}

		drops := collectDrops(s.Audits)
		if len(drops) > 0 {
			b.WriteString("\n### Drops\n\n")
			for _, d := range drops {
				fmt.Fprintf(&b, "- %s\n", d)
			}
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			if w.ArtifactID != "" {
				fmt.Fprintf(&b, "- `%s` [%s] %s: %s\n", w.Stage, w.Code, w.ArtifactID, w.Message)
			} else {
				fmt.Fprintf(&b, "- `%s` [%s] %s\n", w.Stage, w.Code, w.Message)
			}
		}
	}

	return b.String()
}

// collectDrops flattens per-stage drop counters into sorted lines
func collectDrops(audits []run.StageAudit) []string {
	var lines []string
	for _, a := range audits {
		for reason, count := range a.DropsByReason {
			lines = append(lines, fmt.Sprintf("%s: %d dropped (%s)", a.Stage, count, reason))
		}
	}
	sort.Strings(lines)
	return lines
}

// RenderHTML converts the markdown report to an HTML fragment
func RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
