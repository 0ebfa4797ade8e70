package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	perrors "github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/merge"
	"github.com/ShayCichocki/parari/internal/result"
	"github.com/ShayCichocki/parari/pkg/models"
)

// printer writes headless progress and results.
type printer struct {
	w      io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	faint  *color.Color
	bold   *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		faint:  color.New(color.Faint),
		bold:   color.New(color.Bold),
	}
}

// printStatus prints a status line with color
func (p *printer) printStatus(symbol string, c *color.Color, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", c.Sprint(symbol), fmt.Sprintf(format, args...))
}

func (p *printer) header(repoPath string, agents []string) {
	fmt.Fprintf(p.w, "%s %s\n", p.bold.Sprint("parari"), p.faint.Sprint(repoPath))
	icons := make([]string, len(agents))
	for i, a := range agents {
		icons[i] = result.Emoji(a) + " " + a
	}
	fmt.Fprintf(p.w, "Agents: %s\n\n", strings.Join(icons, "  "))
}

// status prints one agent's current state.
func (p *printer) status(a models.AgentSnapshot) {
	name := result.Emoji(a.Agent) + " " + a.Agent
	switch a.Status {
	case models.AgentStatusPending:
		p.printStatus("·", p.faint, "%s waiting for worktree", name)
	case models.AgentStatusRunning:
		p.printStatus("⏳", p.cyan, "%s running", name)
	case models.AgentStatusSucceeded:
		p.printStatus("✓", p.green, "%s succeeded%s", name, changes(a.Diff))
	case models.AgentStatusFailed:
		detail := a.Reason
		if a.Error != "" {
			detail = firstLine(a.Error)
		}
		p.printStatus("✗", p.red, "%s failed: %s", name, detail)
	case models.AgentStatusCancelled:
		p.printStatus("⊘", p.yellow, "%s cancelled", name)
	}
}

// summary prints the final counts.
func (p *printer) summary(snap models.RunSnapshot) {
	c := snap.Counts()
	fmt.Fprintf(p.w, "\n%s  %s  %s\n",
		p.green.Sprintf("✓ %d succeeded", c[models.AgentStatusSucceeded]),
		p.red.Sprintf("✗ %d failed", c[models.AgentStatusFailed]),
		p.yellow.Sprintf("⊘ %d cancelled", c[models.AgentStatusCancelled]))
}

// results prints every agent's log view followed by its diff.
func (p *printer) results(snap models.RunSnapshot) {
	for _, a := range snap.Agents {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, result.FormatLog(a))
		if a.Applicable() {
			fmt.Fprintln(p.w, result.FormatDiff(a.Diff))
		}
	}
}

func (p *printer) applied(res *merge.Result) {
	if !res.Merged {
		p.printStatus("✓", p.green, "%s made no changes; nothing to apply", res.Agent)
		return
	}
	p.printStatus("✓", p.green, "Applied %s (%d file(s)) from %s", res.Agent, len(res.ChangedFiles), res.Branch)
	for _, f := range res.ChangedFiles {
		fmt.Fprintf(p.w, "    %s\n", f)
	}
}

func (p *printer) warn(format string, args ...any) {
	p.printStatus("⚠", p.yellow, format, args...)
}

// failure prints err, listing the paths of a merge error on their own lines.
func (p *printer) failure(err error) {
	p.printStatus("✗", p.red, "Error: %v", err)

	var mergeErr *perrors.MergeError
	if !perrors.As(err, &mergeErr) {
		return
	}
	for _, path := range mergeErr.Paths {
		fmt.Fprintf(p.w, "    %s\n", path)
	}
	switch mergeErr.Reason {
	case perrors.MergeConflict:
		fmt.Fprintln(p.w, "The merge was aborted; your working tree is unchanged.")
	case perrors.MergeDirty:
		fmt.Fprintln(p.w, "Commit or stash these files and run again.")
	case perrors.MergeDiverged:
		fmt.Fprintln(p.w, "The base branch moved while the agents ran; run again from the new HEAD.")
	}
}

func changes(d *models.DiffSummary) string {
	if d.Empty() {
		return " (no changes)"
	}
	return fmt.Sprintf(" (+%d ~%d -%d)", d.FilesAdded, d.FilesModified, d.FilesDeleted)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
