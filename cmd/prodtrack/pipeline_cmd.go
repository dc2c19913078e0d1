package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/production-tracking/internal/config"
	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/tui"
)

func newPipelineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Work with pipeline configuration",
	}

	cmd.AddCommand(
		newPipelineValidateCmd(),
		newPipelineShowCmd(app),
	)

	return cmd
}

func newPipelineValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a pipeline YAML file against the schema and rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.LoadPipelineFile(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.StyleGreen.Render("✓ "+args[0]+" is valid"))
			printPipeline(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newPipelineShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the pipeline the API is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Client().Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			printPipeline(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func printPipeline(w io.Writer, p *domain.Pipeline) {
	fmt.Fprintln(w, tui.StyleHeader.Render("Stages"))
	for i, st := range p.Stages() {
		allowance := "no deadline"
		if st.Allowance > 0 {
			allowance = fmt.Sprintf("%d min", st.AllowanceMinutes())
		}
		var gates []string
		if p.IsGated(st.Name, domain.BoundaryStart) {
			gates = append(gates, "start")
		}
		if p.IsGated(st.Name, domain.BoundaryFinish) {
			gates = append(gates, "finish")
		}
		line := fmt.Sprintf("  %d. %-16s %-12s", i+1, st.DisplayName, allowance)
		if len(gates) > 0 {
			line += "  inspection at " + strings.Join(gates, ", ")
		}
		fmt.Fprintln(w, line)
	}
	if products := p.Products(); len(products) > 0 {
		fmt.Fprintln(w, tui.StyleHeader.Render("Product allowances"))
		for _, pr := range products {
			var parts []string
			for _, st := range p.Stages() {
				if a, ok := pr.Allowances[st.Name]; ok {
					parts = append(parts, fmt.Sprintf("%s %d min", st.DisplayName, int(a/time.Minute)))
				}
			}
			fmt.Fprintf(w, "  %-16s %s\n", pr.ItemCode, strings.Join(parts, ", "))
		}
	}
	if len(p.Warehouse.Types) > 0 {
		fmt.Fprintf(w, "%s %s\n", tui.StyleHeader.Render("Warehouse types"), strings.Join(p.Warehouse.Types, ", "))
	}
	fmt.Fprintf(w, "%s %s\n", tui.StyleHeader.Render("Default rotation"), strings.Join(p.Rotation.DefaultFilters, ", "))
}
