package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"namegnome/internal/apply"
	"namegnome/internal/plan"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var planPath string
	var root string
	var mode string
	var onCollision string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a reviewed rename plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(planPath) == "" {
				return fmt.Errorf("--plan is required")
			}

			encoded, err := os.ReadFile(planPath)
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}
			review, err := plan.DecodeReview(encoded)
			if err != nil {
				return err
			}
			items, err := reviewPlanItems(review)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if strings.TrimSpace(mode) == "" {
				mode = cfg.Apply.Mode
			}
			if strings.TrimSpace(onCollision) == "" {
				onCollision = cfg.Apply.OnCollision
			}
			applyRoot := strings.TrimSpace(root)
			if applyRoot == "" {
				applyRoot, err = os.Getwd()
				if err != nil {
					return err
				}
			}
			applyRoot, err = filepath.Abs(applyRoot)
			if err != nil {
				return err
			}

			engine := apply.NewEngine(logger)
			report, err := engine.ApplyPlan(cmd.Context(), items, apply.Options{
				Root:        applyRoot,
				PlanID:      review.PlanID,
				Mode:        apply.Mode(mode),
				OnCollision: apply.CollisionStrategy(onCollision),
			})
			if err != nil {
				return err
			}

			if jsonOutput || !stdoutIsTerminal() {
				return writeJSON(cmd, applyReportPayload(report))
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Total", fmt.Sprintf("%d", report.TotalItems)},
				{"Applied", fmt.Sprintf("%d", report.Applied)},
				{"Skipped", fmt.Sprintf("%d", report.Skipped)},
				{"Failed", fmt.Sprintf("%d", report.Failed)},
				{"Dry-run noops", fmt.Sprintf("%d", report.Noop)},
			}
			fmt.Fprintln(out, renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Report %s\nManifest %s\n", report.ReportID, report.ManifestPath)
			for _, message := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s\n", message)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d item(s) failed; rollback with `namegnome rollback %s --root %s`",
					report.Failed, report.ReportID, applyRoot)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Path to the plan JSON produced by `namegnome plan`")
	cmd.Flags().StringVar(&root, "root", "", "Root directory for manifests and locking (defaults to the working directory)")
	cmd.Flags().StringVar(&mode, "mode", "", "Apply mode: transactional, continue_on_error, or dry_run")
	cmd.Flags().StringVar(&onCollision, "on-collision", "", "Collision strategy: backup, overwrite, or skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the apply report as JSON")
	return cmd
}

type applyReport struct {
	ReportID     string   `json:"report_id"`
	ManifestPath string   `json:"manifest_path"`
	TotalItems   int      `json:"total_items"`
	Applied      int      `json:"applied"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	Noop         int      `json:"noop"`
	Errors       []string `json:"errors,omitempty"`
}

func applyReportPayload(report *apply.Report) applyReport {
	return applyReport{
		ReportID:     report.ReportID,
		ManifestPath: report.ManifestPath,
		TotalItems:   report.TotalItems,
		Applied:      report.Applied,
		Skipped:      report.Skipped,
		Failed:       report.Failed,
		Noop:         report.Noop,
		Errors:       report.Errors,
	}
}
