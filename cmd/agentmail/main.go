// Command agentmail runs the agentmail MCP server: a JSON-RPC/MCP
// coordination layer giving autonomous coding agents a shared inbox,
// file-reservation leases, and a project archive.
//
// Required: none — a fresh SQLite index and archive tree are created under
// the storage root ([storage] root or STORAGE_ROOT, default
// ./agentmail-data) on first run.
//
// Optional environment variables mirror most agentmail.toml keys; see
// internal/config for the full list (AGENTMAIL_CONFIG, STORAGE_ROOT,
// TRANSPORT_MODE, LOG_LEVEL, ...).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// isInteractive reports whether w is a terminal, used to decide between the
// JSON log handler (structured, for log aggregation) and a human-readable
// one (for a developer running `agentmail serve` at a shell).
func isInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// version is set via ldflags at build time.
var version = "dev"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentmail: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentmail",
		Short: "Coordination layer for autonomous coding agents",
		Long: `agentmail is a JSON-RPC/MCP server giving a fleet of autonomous coding
agents a shared project-scoped inbox, file-reservation leases, and a
durable Markdown/JSON archive of everything they did.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to agentmail.toml (default: $AGENTMAIL_CONFIG, ./agentmail.toml, ~/.config/agentmail/agentmail.toml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newGuardCmd())
	root.AddCommand(newVersionCmd())
	return root
}
