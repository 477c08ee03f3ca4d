package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/agentmail/internal/guardhook"
)

func newGuardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Install or remove the git pre-commit reservation guard",
	}
	cmd.AddCommand(newGuardInstallCmd())
	cmd.AddCommand(newGuardUninstallCmd())
	return cmd
}

func newGuardInstallCmd() *cobra.Command {
	var repoRoot, claimsDir, projectSlug string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the pre-commit hook that refuses commits touching another agent's exclusive reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := guardhook.Install(repoRoot, claimsDir, projectSlug)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed guard hook at %s\n", result.HookPath)
			if result.BackedUpPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "previous hook preserved at %s\n", result.BackedUpPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoRoot, "repo-root", ".", "git repository root")
	cmd.Flags().StringVar(&claimsDir, "claims-dir", "", "project's claims/ directory (required)")
	cmd.Flags().StringVar(&projectSlug, "project", "", "project slug (required)")
	cmd.MarkFlagRequired("claims-dir")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newGuardUninstallCmd() *cobra.Command {
	var repoRoot string
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the pre-commit guard hook, restoring any backed-up foreign hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := guardhook.Uninstall(repoRoot); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "guard hook removed")
			return nil
		},
	}
	cmd.Flags().StringVar(&repoRoot, "repo-root", ".", "git repository root")
	return cmd
}
