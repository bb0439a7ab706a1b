package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"namegnome/internal/manifest"
)

func newRollbackCommand(ctx *commandContext) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "rollback <report-id|manifest-path>",
		Short: "Undo an applied plan from its rollback manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveManifestPath(args[0], root)
			if err != nil {
				return err
			}

			result, err := manifest.Rollback(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored %d item(s), skipped %d\n", result.Restored, result.Skipped)
			for _, message := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "rollback: %s\n", message)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d item(s) could not be restored", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Root directory the plan was applied under (defaults to the working directory)")
	return cmd
}

// resolveManifestPath accepts either a manifest file path or a report
// id to look up under <root>/.namegnome/rollbacks.
func resolveManifestPath(arg, root string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("report id or manifest path required")
	}
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}

	if strings.TrimSpace(root) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = cwd
	}
	name := arg
	if !strings.HasSuffix(name, ".jsonl") {
		name += ".jsonl"
	}
	path := filepath.Join(root, ".namegnome", "rollbacks", name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no rollback manifest for %q under %s", arg, root)
	}
	return path, nil
}
