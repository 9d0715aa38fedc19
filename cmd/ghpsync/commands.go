package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/tui"
)

func newBoardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board (default)",
		Long: `Open the interactive kanban board.

Without --owner and --project a picker lists the projects of the viewer and
their organizations. When stdout is not a terminal the board is printed as
a table instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBoard(cmd.Context())
		},
	}
}

func (a *app) runBoard(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return a.runStatus(ctx, os.Stdout, "table")
	}

	if a.cfg.Owner != "" && a.cfg.Project != 0 {
		project, err := a.resolveProject(ctx)
		if err != nil {
			return err
		}
		sess, err := a.openSession(project)
		if err != nil {
			return err
		}
		return tui.Run(tui.NewBoardApp(ctx, a.tuiSession(ctx, sess)))
	}
	if a.cfg.Project != 0 {
		return fmt.Errorf("--project requires --owner to be specified")
	}

	list := func(ctx context.Context) ([]domain.Project, error) {
		result, err := a.listProjects(ctx)
		if err != nil {
			return nil, err
		}
		return result.Projects, result.Err()
	}
	open := func(ctx context.Context, p domain.Project) (*tui.Session, error) {
		client, err := a.github()
		if err != nil {
			return nil, err
		}
		project, err := client.GetProjectByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		sess, err := a.openSession(project)
		if err != nil {
			return nil, err
		}
		return a.tuiSession(ctx, sess), nil
	}
	return tui.Run(tui.NewAppModel(ctx, list, open))
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the configured project once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.openConfiguredSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx, a.logger)

			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d items from %s/%d (%s)\n",
				sess.store.Len(), sess.project.Owner, sess.project.Number, sess.project.Title)
			if pending := len(sess.manager.PendingUpdates()); pending > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d updates still pending\n", pending)
			}
			return nil
		},
	}
}

// boardStatus is the machine-readable form of the status command.
type boardStatus struct {
	Project  string         `json:"project" yaml:"project"`
	URL      string         `json:"url,omitempty" yaml:"url,omitempty"`
	SyncedAt time.Time      `json:"synced_at" yaml:"synced_at"`
	Pending  int            `json:"pending" yaml:"pending"`
	Columns  []columnStatus `json:"columns" yaml:"columns"`
}

type columnStatus struct {
	ID    string       `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Items []itemStatus `json:"items" yaml:"items"`
}

type itemStatus struct {
	ID    string `json:"id" yaml:"id"`
	Ref   string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Title string `json:"title" yaml:"title"`
}

func newStatusCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Sync and print the board columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd.Context(), cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, yaml or json")
	return cmd
}

func (a *app) runStatus(ctx context.Context, w io.Writer, format string) error {
	switch format {
	case "table", "yaml", "json":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	sess, err := a.openConfiguredSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close(ctx, a.logger)

	status := collectStatus(sess)
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(status); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	renderStatusTable(w, status, time.Now())
	return nil
}

func collectStatus(sess *session) boardStatus {
	status := boardStatus{
		Project:  fmt.Sprintf("%s/%d %s", sess.project.Owner, sess.project.Number, sess.project.Title),
		URL:      sess.project.URL,
		SyncedAt: sess.manager.LastSync(),
		Pending:  len(sess.manager.PendingUpdates()),
	}
	for _, col := range sess.store.Columns() {
		cs := columnStatus{ID: col.ID, Name: col.Name, Items: make([]itemStatus, 0, len(col.Items))}
		for _, item := range col.Items {
			cs.Items = append(cs.Items, itemStatus{ID: item.ID, Ref: itemRef(item), Title: item.Title})
		}
		status.Columns = append(status.Columns, cs)
	}
	return status
}

func itemRef(item *domain.Item) string {
	if item.Repo == "" || item.Number == 0 {
		return ""
	}
	return fmt.Sprintf("%s#%d", item.Repo, item.Number)
}

func renderStatusTable(w io.Writer, status boardStatus, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("%s (synced %s)", status.Project, humanize.RelTime(status.SyncedAt, now, "ago", "from now"))
	tw.AppendHeader(table.Row{"Column", "ID", "Ref", "Title"})

	total := 0
	for _, col := range status.Columns {
		if len(col.Items) == 0 {
			tw.AppendRow(table.Row{col.Name, "", "", "(empty)"})
		}
		for _, item := range col.Items {
			tw.AppendRow(table.Row{col.Name, item.ID, item.Ref, item.Title})
		}
		tw.AppendSeparator()
		total += len(col.Items)
	}
	tw.AppendFooter(table.Row{"", "", "Total", total})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 4, WidthMax: 60},
	})
	tw.Render()
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <item-id> [column]",
		Short: "Move an item to a column",
		Long: `Move an item to a column, given by name or option ID.

Without a column an interactive list of the board's columns is shown.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.openConfiguredSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx, a.logger)

			itemID := args[0]
			item, ok := sess.store.Item(itemID)
			if !ok {
				return fmt.Errorf("item %s is not on the board", itemID)
			}

			columns := sess.store.Columns()
			var column domain.Column
			if len(args) == 2 {
				column, ok = findColumn(columns, args[1])
				if !ok {
					return fmt.Errorf("no column %q on the board", args[1])
				}
			} else {
				column, err = promptColumn(item, columns)
				if err != nil {
					return err
				}
			}

			if !sess.manager.MoveCard(itemID, column.ID) {
				return fmt.Errorf("cannot move %s to %s", itemID, column.Name)
			}

			// The queued push runs in the background; a failure leaves the
			// update queued, so retry it once before giving up.
			sess.manager.Wait()
			if sess.manager.HasPendingUpdates() {
				if err := sess.manager.PushPendingUpdates(ctx).Err(); err != nil {
					return fmt.Errorf("move was not saved: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %q to %s\n", item.Title, column.Name)
			return nil
		},
	}
}

// findColumn matches a column by option ID or case-insensitive name.
func findColumn(columns []domain.Column, want string) (domain.Column, bool) {
	for _, col := range columns {
		if col.ID == want || strings.EqualFold(col.Name, want) {
			return col, true
		}
	}
	return domain.Column{}, false
}

func promptColumn(item *domain.Item, columns []domain.Column) (domain.Column, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return domain.Column{}, fmt.Errorf("no column given and stdin is not a terminal")
	}

	options := make([]huh.Option[string], len(columns))
	for i, col := range columns {
		options[i] = huh.NewOption(fmt.Sprintf("%d. %s (%d)", i+1, col.Name, len(col.Items)), col.ID)
	}

	var chosen string
	err := huh.NewSelect[string]().
		Title(fmt.Sprintf("Move %q to", item.Title)).
		Options(options...).
		Value(&chosen).
		Run()
	if err != nil {
		return domain.Column{}, err
	}
	column, _ := findColumn(columns, chosen)
	return column, nil
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects of the viewer and their organizations",
		Long: `List projects of --owner, or of the viewer and every organization they
belong to. Owners that cannot be listed are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.listProjects(cmd.Context())
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Owner", "Number", "Title", "URL"})
			for _, p := range result.Projects {
				tw.AppendRow(table.Row{p.Owner, p.Number, p.Title, p.URL})
			}
			tw.Render()

			// Per-owner failures were already logged by listProjects.
			if len(result.Projects) == 0 && len(result.Failed) > 0 {
				return fmt.Errorf("no owner could be listed: %w", result.Err())
			}
			return nil
		},
	}
}
