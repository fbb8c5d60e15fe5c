package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Fusionaimcp4/localboxs/internal/registry"
)

func newDemosCommand() *cobra.Command {
	var registryPath string

	cmd := &cobra.Command{
		Use:   "demos",
		Short: "Inspect the demo registry",
	}
	cmd.PersistentFlags().StringVar(&registryPath, "registry", "",
		"registry file (default $REGISTRY_PATH or "+defaultRegistryPath+")")

	store := func() *registry.FileStore {
		if registryPath == "" {
			registryPath = envOr("REGISTRY_PATH", defaultRegistryPath)
		}
		return registry.NewFileStore(registryPath)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List onboarded demos, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				entries, err := store().List(cmd.Context())
				if err != nil {
					return err
				}
				renderDemos(cmd.OutOrStdout(), entries)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <slug>",
			Short: "Print one registry entry as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entry, err := store().Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entry)
			},
		},
	)
	return cmd
}

func renderDemos(w io.Writer, entries []registry.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No demos onboarded yet")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Slug", "Business", "Demo URL", "Inbox", "Workflow", "Created"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Slug,
			e.Business,
			e.DemoURL,
			e.Chatwoot.InboxID,
			orDash(e.WorkflowID),
			e.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(entries)})
	t.Render()
}
