package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"namegnome/internal/media"
	"namegnome/internal/plan"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var scanPath string
	var outputPath string
	var scanID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve a scan result into a reviewable rename plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(scanPath) == "" {
				return fmt.Errorf("--scan is required")
			}

			scanBytes, err := os.ReadFile(scanPath)
			if err != nil {
				return fmt.Errorf("read scan result: %w", err)
			}
			scan, err := media.DecodeScanResult(bytes.NewReader(scanBytes))
			if err != nil {
				return err
			}

			store, err := ctx.openCache()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "provider cache unavailable: %v\n", err)
				store = nil
			}
			if store != nil {
				defer store.Close()
			}

			engine, err := ctx.buildPlanEngine(store)
			if err != nil {
				return err
			}

			sources := make([]plan.Source, 0, len(scan.Files))
			var resolveErrors []string
			for _, record := range scan.Files {
				resolution, err := engine.ResolveRecord(cmd.Context(), record, scan.MediaType)
				if err != nil {
					// A broken model contract fails the file, not the batch.
					resolveErrors = append(resolveErrors, fmt.Sprintf("%s: %v", record.Path, err))
				}
				sources = append(sources, plan.Source{
					Record:        resolution.Record,
					Deterministic: resolution.Deterministic,
					LLM:           resolution.LLM,
				})
			}

			fingerprint := sha256.Sum256(scanBytes)
			opts := []plan.Option{
				plan.WithSourceFingerprint("sha256:" + hex.EncodeToString(fingerprint[:])),
			}
			if strings.TrimSpace(scanID) != "" {
				opts = append(opts, plan.WithScanID(scanID))
			}

			review, err := plan.NewBuilder(opts...).Build(scan.MediaType, sources)
			if err != nil {
				return err
			}
			encoded, err := review.Encode()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if strings.TrimSpace(outputPath) != "" {
				if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write plan: %w", err)
				}
				fmt.Fprintf(out, "Wrote plan %s to %s\n", review.PlanID, outputPath)
			} else if jsonOutput || !stdoutIsTerminal() {
				if _, err := out.Write(encoded); err != nil {
					return err
				}
			}

			if !jsonOutput && (strings.TrimSpace(outputPath) != "" || stdoutIsTerminal()) {
				fmt.Fprintln(out, renderPlanSummary(review))
			}
			for _, message := range resolveErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "resolve failed: %s\n", message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scanPath, "scan", "", "Path to the scan result JSON document")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the plan to this path instead of stdout")
	cmd.Flags().StringVar(&scanID, "scan-id", "", "Scan identifier to record in the plan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the plan as JSON on stdout")
	return cmd
}

func renderPlanSummary(review *plan.Review) string {
	summary := review.Summary
	rows := [][]string{
		{"Items", fmt.Sprintf("%d", summary.TotalItems)},
		{"Deterministic", fmt.Sprintf("%d", summary.ByOrigin.Deterministic)},
		{"Model", fmt.Sprintf("%d", summary.ByOrigin.LLM)},
		{"High confidence", fmt.Sprintf("%d", summary.ByConfidence.High)},
		{"Medium confidence", fmt.Sprintf("%d", summary.ByConfidence.Medium)},
		{"Low confidence", fmt.Sprintf("%d", summary.ByConfidence.Low)},
		{"Warnings", fmt.Sprintf("%d", summary.Warnings)},
		{"Anthology candidates", fmt.Sprintf("%d", summary.AnthologyCandidates)},
		{"Needs disambiguation", fmt.Sprintf("%d", summary.Disambiguations)},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

// reviewPlanItems converts winning review items back into the plan
// items the apply engine consumes.
func reviewPlanItems(review *plan.Review) ([]media.PlanItem, error) {
	items := make([]media.PlanItem, 0, len(review.Items))
	for _, item := range review.Items {
		reason := ""
		if item.Explain != nil {
			reason = item.Explain.Reason
		}
		var sources []media.SourceRef
		for _, source := range item.Sources {
			ref, err := media.NewSourceRef(source.Provider, source.ID)
			if err != nil {
				return nil, fmt.Errorf("plan item %s: %w", item.ID, err)
			}
			sources = append(sources, ref)
		}
		planItem, err := media.NewPlanItem(item.Src.Path, item.Dst.Path, reason, item.Confidence, sources, item.Warnings)
		if err != nil {
			return nil, fmt.Errorf("plan item %s: %w", item.ID, err)
		}
		items = append(items, planItem)
	}
	return items, nil
}
