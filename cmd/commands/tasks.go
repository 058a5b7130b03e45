package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/tasks"
	"github.com/dohr-michael/taskflow/internal/ui"
)

// NewAddCommand returns the add subcommand.
func NewAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a task",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description (markdown)"},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Low, Medium, High or Critical", Value: string(tasks.PriorityMedium)},
			&cli.StringFlag{Name: "tags", Aliases: []string{"t"}, Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "due", Aliases: []string{"u"}, Usage: "Due date (YYYY-MM-DD [HH:MM] or DD/MM/YYYY [HH:MM])"},
		},
		Action: withLocal(true, runAdd),
	}
}

func runAdd(_ context.Context, cmd *cli.Command, l *local) error {
	title := strings.Join(cmd.Args().Slice(), " ")
	t, err := tasks.New(title)
	if err != nil {
		return err
	}

	p, err := tasks.ParsePriority(cmd.String("priority"))
	if err != nil {
		return err
	}
	t.Priority = p
	t.Description = cmd.String("description")
	if v := cmd.String("tags"); v != "" {
		t.SetTags(tasks.ParseTags(v))
	}
	if v := cmd.String("due"); v != "" {
		due, err := tasks.ParseDate(v)
		if err != nil {
			return err
		}
		t.DueDate = &due
	}
	t.UpdatedAt = t.CreatedAt
	l.registry.Insert(t)

	fmt.Fprintf(l.out, "%s Created task %s: %s\n", ui.SuccessStyle.Render("✓"), t.ShortID(), t.Title)
	return nil
}

// NewListCommand returns the list subcommand.
func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List tasks, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"S"}, Usage: "Only tasks in this status"},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Only tasks with this priority"},
			&cli.StringFlag{Name: "tags", Aliases: []string{"t"}, Usage: "Only tasks carrying all these comma-separated tags"},
			&cli.BoolFlag{Name: "overdue", Usage: "Only overdue tasks"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of tasks shown"},
		},
		Action: withLocal(false, runList),
	}
}

func runList(_ context.Context, cmd *cli.Command, l *local) error {
	var f tasks.Filter
	if v := cmd.String("status"); v != "" {
		st, err := tasks.ParseStatus(v)
		if err != nil {
			return err
		}
		f.Status = st
	}
	if v := cmd.String("priority"); v != "" {
		p, err := tasks.ParsePriority(v)
		if err != nil {
			return err
		}
		f.Priority = p
	}
	if v := cmd.String("tags"); v != "" {
		f.Tags = tasks.ParseTags(v)
	}
	f.OverdueOnly = cmd.Bool("overdue")

	list := l.registry.Filter(f)
	tasks.SortNewest(list)
	return printList(l, list, cmd.Int("limit"))
}

func printList(l *local, list []tasks.Task, limit int) error {
	if len(list) == 0 {
		fmt.Fprintln(l.out, ui.MutedStyle.Render("No tasks found."))
		return nil
	}
	total := len(list)
	if limit > 0 && total > limit {
		list = list[:limit]
	}
	if err := ui.TaskTable(l.out, list, tasks.Now()); err != nil {
		return err
	}
	if len(list) < total {
		fmt.Fprintln(l.out, ui.MutedStyle.Render(fmt.Sprintf("… %d more", total-len(list))))
	}
	return nil
}

// NewShowCommand returns the show subcommand.
func NewShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show task details",
		ArgsUsage: "<id>",
		Action: withLocal(false, func(_ context.Context, cmd *cli.Command, l *local) error {
			id, err := l.resolve(cmd.Args().First())
			if err != nil {
				return err
			}
			t, _ := l.registry.Get(id)
			ui.TaskDetail(l.out, &t, tasks.Now(), 80)
			return nil
		}),
	}
}

// NewTransitionCommand returns start, complete or cancel.
func NewTransitionCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: withLocal(true, func(_ context.Context, cmd *cli.Command, l *local) error {
			id, err := l.resolve(cmd.Args().First())
			if err != nil {
				return err
			}
			apply := map[string]func(string) error{
				"start":    l.registry.Start,
				"complete": l.registry.Complete,
				"cancel":   l.registry.Cancel,
			}[name]
			if err := apply(id); err != nil {
				return err
			}
			t, _ := l.registry.Get(id)
			fmt.Fprintf(l.out, "%s %s is now %s\n", ui.SuccessStyle.Render("✓"), t.ShortID(),
				ui.StatusStyle(t.Status).Render(t.Status.Label()))
			return nil
		}),
	}
}

// NewDeleteCommand returns the delete subcommand.
func NewDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a task",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Do not ask for confirmation"},
		},
		Action: withLocal(true, func(_ context.Context, cmd *cli.Command, l *local) error {
			id, err := l.resolve(cmd.Args().First())
			if err != nil {
				return err
			}
			t, _ := l.registry.Get(id)
			if !cmd.Bool("force") {
				ok, err := ui.Confirm(l.in, l.out, fmt.Sprintf("Delete %s %q?", t.ShortID(), t.Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(l.out, "Aborted.")
					return nil
				}
			}
			if _, err := l.registry.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(l.out, "%s Deleted %s\n", ui.SuccessStyle.Render("✓"), t.ShortID())
			return nil
		}),
	}
}

// NewEditCommand returns the edit subcommand.
func NewEditCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change a task's title, description, priority or due date",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description (empty clears it)"},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "New priority"},
			&cli.StringFlag{Name: "due", Aliases: []string{"u"}, Usage: `New due date ("none" clears it)`},
		},
		Action: withLocal(true, runEdit),
	}
}

func runEdit(_ context.Context, cmd *cli.Command, l *local) error {
	id, err := l.resolve(cmd.Args().First())
	if err != nil {
		return err
	}

	err = l.registry.Update(id, func(t *tasks.Task) error {
		next := t.Clone()
		if cmd.IsSet("title") {
			if err := next.SetTitle(cmd.String("title")); err != nil {
				return err
			}
		}
		if cmd.IsSet("description") {
			next.SetDescription(cmd.String("description"))
		}
		if cmd.IsSet("priority") {
			p, err := tasks.ParsePriority(cmd.String("priority"))
			if err != nil {
				return err
			}
			if err := next.SetPriority(p); err != nil {
				return err
			}
		}
		if cmd.IsSet("due") {
			if v := cmd.String("due"); strings.EqualFold(v, "none") || v == "" {
				next.SetDueDate(nil)
			} else {
				due, err := tasks.ParseDate(v)
				if err != nil {
					return err
				}
				next.SetDueDate(&due)
			}
		}
		*t = *next
		return nil
	})
	if err != nil {
		return err
	}

	t, _ := l.registry.Get(id)
	fmt.Fprintf(l.out, "%s Updated %s\n", ui.SuccessStyle.Render("✓"), t.ShortID())
	return nil
}

// NewSearchCommand returns the search subcommand.
func NewSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find tasks by text; title matches come first",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of tasks shown"},
		},
		Action: withLocal(false, func(_ context.Context, cmd *cli.Command, l *local) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return &tasks.ValidationError{Field: "query", Message: "search query cannot be empty"}
			}
			list := l.registry.Search(query)
			tasks.SortNewest(list)
			tasks.SortBySearchRelevance(list, query)
			return printList(l, list, cmd.Int("limit"))
		}),
	}
}

// NewTagCommand returns the tag subcommand with add and remove.
func NewTagCommand() *cli.Command {
	tagAction := func(add bool) cli.ActionFunc {
		return withLocal(true, func(_ context.Context, cmd *cli.Command, l *local) error {
			if cmd.NArg() < 2 {
				return &tasks.ValidationError{Field: "tag", Message: "usage: <id> <tag>"}
			}
			id, err := l.resolve(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			tag := cmd.Args().Get(1)

			var changed bool
			if add {
				changed, err = l.registry.AddTag(id, tag)
			} else {
				changed, err = l.registry.RemoveTag(id, tag)
			}
			if err != nil {
				return err
			}

			t, _ := l.registry.Get(id)
			switch {
			case !changed && add:
				fmt.Fprintf(l.out, "%s already tagged %q\n", t.ShortID(), tag)
			case !changed:
				fmt.Fprintf(l.out, "%s has no tag %q\n", t.ShortID(), tag)
			default:
				fmt.Fprintf(l.out, "%s Tags of %s: %s\n", ui.SuccessStyle.Render("✓"), t.ShortID(), strings.Join(t.Tags, ", "))
			}
			return nil
		})
	}

	return &cli.Command{
		Name:  "tag",
		Usage: "Add or remove a tag",
		Commands: []*cli.Command{
			{Name: "add", Usage: "Add a tag to a task", ArgsUsage: "<id> <tag>", Action: tagAction(true)},
			{Name: "remove", Aliases: []string{"rm"}, Usage: "Remove a tag from a task", ArgsUsage: "<id> <tag>", Action: tagAction(false)},
		},
	}
}

// NewTagsCommand returns the tags subcommand.
func NewTagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List every tag in use",
		Action: withLocal(false, func(_ context.Context, _ *cli.Command, l *local) error {
			all := l.registry.AllTags()
			if len(all) == 0 {
				fmt.Fprintln(l.out, ui.MutedStyle.Render("No tags."))
				return nil
			}
			for _, tag := range all {
				fmt.Fprintln(l.out, tag)
			}
			return nil
		}),
	}
}

// NewStatsCommand returns the stats subcommand.
func NewStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show task statistics",
		Action: withLocal(false, func(_ context.Context, _ *cli.Command, l *local) error {
			fmt.Fprintln(l.out, ui.StatsBox(l.registry.Stats()))
			return nil
		}),
	}
}
