package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/exchange"
	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
	"github.com/dohr-michael/taskflow/internal/ui"
)

// NewExportCommand returns the export subcommand.
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every task as JSON, CSV or YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default: stdout)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv or yaml (default: from the file extension, else json)"},
		},
		Action: withLocal(false, runExport),
	}
}

func runExport(_ context.Context, cmd *cli.Command, l *local) error {
	output := cmd.String("output")
	format := exchange.FormatFromPath(output)
	if v := cmd.String("format"); v != "" {
		f, err := exchange.ParseFormat(v)
		if err != nil {
			return err
		}
		format = f
	}

	if output == "" {
		return exchange.Export(l.out, l.registry.Export(), format)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := exportAndClose(f, l.registry.Export(), format); err != nil {
		return fmt.Errorf("export to %s: %w", output, err)
	}
	fmt.Fprintf(l.out, "%s Exported %d tasks to %s\n", ui.SuccessStyle.Render("✓"), l.registry.Len(), output)
	return nil
}

// exportAndClose writes c to wc and always closes it. A failed close is
// reported, since that is where a buffered write may first fail.
func exportAndClose(wc io.WriteCloser, c tasks.Collection, format exchange.Format) error {
	err := exchange.Export(wc, c, format)
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewImportCommand returns the import subcommand.
func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Replace every task with the content of a JSON or YAML file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml (default: from the file extension)"},
		},
		Action: withLocal(true, runImport),
	}
}

func runImport(_ context.Context, cmd *cli.Command, l *local) error {
	path := cmd.Args().First()
	if path == "" {
		return &tasks.ValidationError{Field: "file", Message: "an input file is required"}
	}
	format := exchange.FormatFromPath(path)
	if v := cmd.String("format"); v != "" {
		f, err := exchange.ParseFormat(v)
		if err != nil {
			return err
		}
		format = f
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	c, err := exchange.Import(f, format)
	if err != nil {
		return err
	}
	l.registry.Load(c)

	fmt.Fprintf(l.out, "%s Imported %d tasks\n", ui.SuccessStyle.Render("✓"), len(c))
	return nil
}

// NewCleanCommand returns the clean subcommand.
func NewCleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Delete completed tasks older than a number of days",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Keep tasks completed within this many days", Value: 30},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Do not ask for confirmation"},
		},
		Action: withLocal(true, runClean),
	}
}

func runClean(_ context.Context, cmd *cli.Command, l *local) error {
	days := cmd.Int("days")
	if days < 0 {
		return &tasks.ValidationError{Field: "days", Message: "days cannot be negative"}
	}
	cutoff := tasks.Now().Add(-time.Duration(days) * 24 * time.Hour)

	var candidates int
	for _, t := range l.registry.Filter(tasks.Filter{Status: tasks.StatusCompleted}) {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			candidates++
		}
	}
	if candidates == 0 {
		fmt.Fprintln(l.out, ui.MutedStyle.Render("Nothing to clean."))
		return nil
	}

	if !cmd.Bool("force") {
		ok, err := ui.Confirm(l.in, l.out, fmt.Sprintf("Delete %d completed tasks older than %d days?", candidates, days))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(l.out, "Aborted.")
			return nil
		}
	}

	removed := l.registry.Purge(cutoff)
	fmt.Fprintf(l.out, "%s Removed %d tasks\n", ui.SuccessStyle.Render("✓"), len(removed))
	return nil
}

// NewBackupCommand returns the backup subcommand.
func NewBackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Copy the data file next to itself with a .backup suffix",
		Action: withLocal(false, func(ctx context.Context, _ *cli.Command, l *local) error {
			if err := l.backend.Backup(ctx); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(l.out, "%s Backup written to %s\n", ui.SuccessStyle.Render("✓"), storage.BackupPath(l.path))
			return nil
		}),
	}
}
