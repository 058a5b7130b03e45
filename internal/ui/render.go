package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

const (
	titleWidth = 40
	dueLayout  = "2006-01-02 15:04"
)

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// FormatDue renders a due date, flagging it when the task is overdue.
func FormatDue(t *tasks.Task, now time.Time) string {
	if t.DueDate == nil {
		return "-"
	}
	s := t.DueDate.Format(dueLayout)
	if t.IsOverdue(now) {
		s += " !"
	}
	return s
}

// TaskTable writes list as an aligned table. Cells are plain text so the
// column widths stay correct whether or not the output is a terminal.
func TaskTable(w io.Writer, list []tasks.Task, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTITLE\tDUE\tTAGS")
	for i := range list {
		t := &list[i]
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\n",
			t.ShortID(),
			StatusIcon(t.Status), t.Status.Label(),
			t.Priority,
			Truncate(t.Title, titleWidth),
			FormatDue(t, now),
			strings.Join(t.Tags, ","),
		)
	}
	return tw.Flush()
}

// TaskDetail writes every field of t, rendering the description as markdown.
func TaskDetail(w io.Writer, t *tasks.Task, now time.Time, width int) {
	label := func(name string) string { return LabelStyle.Render(fmt.Sprintf("%-10s", name)) }
	stamp := func(ts *time.Time) string {
		if ts == nil {
			return MutedStyle.Render("-")
		}
		return ts.Format(time.RFC3339)
	}

	fmt.Fprintln(w, TitleStyle.Render(t.Title))
	fmt.Fprintln(w, label("ID"), t.ID)
	fmt.Fprintln(w, label("Status"), StatusStyle(t.Status).Render(StatusIcon(t.Status)+" "+t.Status.Label()))
	fmt.Fprintln(w, label("Priority"), PriorityStyle(t.Priority).Render(string(t.Priority)))
	if len(t.Tags) > 0 {
		fmt.Fprintln(w, label("Tags"), strings.Join(t.Tags, ", "))
	}
	due := FormatDue(t, now)
	if t.IsOverdue(now) {
		due = ErrorStyle.Render(due + " (overdue)")
	}
	fmt.Fprintln(w, label("Due"), due)
	fmt.Fprintln(w, label("Created"), stamp(&t.CreatedAt))
	fmt.Fprintln(w, label("Updated"), stamp(&t.UpdatedAt))
	if t.StartedAt != nil {
		fmt.Fprintln(w, label("Started"), stamp(t.StartedAt))
	}
	if t.CompletedAt != nil {
		fmt.Fprintln(w, label("Completed"), stamp(t.CompletedAt))
	}
	if t.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, RenderMarkdown(t.Description, width, IsTerminal(w)))
	}
}

// StatsBox renders the counters inside a bordered box.
func StatsBox(s tasks.Stats) string {
	row := func(name string, n int, style lipgloss.Style) string {
		return fmt.Sprintf("%-12s %s", name, style.Render(fmt.Sprint(n)))
	}
	plain := lipgloss.NewStyle()
	lines := []string{
		TitleStyle.Render("Task statistics"),
		row("Total", s.Total, plain),
		row("Todo", s.Todo, plain),
		row("In Progress", s.InProgress, StatusStyle(tasks.StatusInProgress)),
		row("Completed", s.Completed, SuccessStyle),
		row("Cancelled", s.Cancelled, MutedStyle),
		row("Overdue", s.Overdue, ErrorStyle),
		fmt.Sprintf("%-12s %.1f%%", "Completion", s.CompletionRate()),
	}
	return BoxStyle.Render(strings.Join(lines, "\n"))
}

// EventLine summarizes a bus event on one line for `taskflow watch`.
func EventLine(e events.Event) string {
	ts := MutedStyle.Render(e.Timestamp.Local().Format("15:04:05"))
	kind := LabelStyle.Render(string(e.Type))

	var detail string
	switch e.Type {
	case events.EventTaskCreated, events.EventTaskUpdated:
		if t, ok := taskFrom(e); ok {
			detail = fmt.Sprintf("%s %q", t.ShortID(), t.Title)
		}
	case events.EventTaskStatusChanged:
		if p, ok := events.ExtractPayload[events.TaskStatusChangedPayload](e); ok {
			detail = fmt.Sprintf("%s %q %s → %s", p.Task.ShortID(), p.Task.Title, p.From.Label(), p.To.Label())
		}
	case events.EventTaskDeleted:
		if p, ok := events.ExtractPayload[events.TaskDeletedPayload](e); ok {
			detail = p.TaskID
			if p.Title != "" {
				detail += fmt.Sprintf(" %q", p.Title)
			}
		}
	case events.EventUserConnected:
		if p, ok := events.ExtractPayload[events.UserConnectedPayload](e); ok {
			detail = p.Username
		}
	case events.EventUserDisconnected:
		if p, ok := events.ExtractPayload[events.UserDisconnectedPayload](e); ok {
			detail = p.Username
		}
	case events.EventNotification:
		if p, ok := events.ExtractPayload[events.NotificationPayload](e); ok {
			detail = p.Message
		}
	}

	line := ts + " " + kind
	if detail != "" {
		line += " " + detail
	}
	if e.UserID != "" {
		line += " " + MutedStyle.Render("by "+e.UserID)
	}
	return line
}

func taskFrom(e events.Event) (tasks.Task, bool) {
	if p, ok := events.ExtractPayload[events.TaskCreatedPayload](e); ok {
		return p.Task, true
	}
	if p, ok := events.ExtractPayload[events.TaskUpdatedPayload](e); ok {
		return p.Task, true
	}
	return tasks.Task{}, false
}
