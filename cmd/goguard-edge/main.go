// Command goguard-edge is a reverse proxy that gates every request with the
// session guard before forwarding it upstream.
//
//	goguard-edge serve --config edge.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "goguard-edge",
	Short: "Session-guarding reverse proxy",
	Long: `goguard-edge keeps each browser session's access and refresh credentials
server-side and forwards only authorized requests to the upstream.

Environment Variables:
  GOGUARD_UPSTREAM         Upstream URL (overrides upstream)
  GOGUARD_BACKEND_URL      Validate/refresh backend base URL (overrides guard.probe.base_url)
  GOGUARD_REDIS_ADDR       Redis address (overrides redis.addr)
  GOGUARD_REDIS_PASSWORD   Redis password
  GOGUARD_POSTGRES_DSN     Postgres DSN (overrides postgres.dsn)
  GOGUARD_ENCRYPTION_KEY   Base64 32-byte key sealing stored credentials`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "goguard-edge", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
