// Package cmd provides the CLI commands for the gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-gate/aegisgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aegis-gate",
	Short: "Aegis Gate - policy-mediated egress gateway for autonomous agents",
	Long: `Aegis Gate is an egress gateway that sits between autonomous agents and
the tools they call. Every tool call is checked against declarative YAML
policies before it runs; sensitive actions are suspended until a human
approves, and every decision is written to an append-only audit log.

Quick start:
  1. Put policy files in ./policies/
  2. Run: aegis-gate start
  3. Agents call: POST /tools/{tool}/{action} with an X-Agent-ID header

Configuration:
  Config is loaded from aegis-gate.yaml in the current directory,
  $HOME/.aegis-gate/, or /etc/aegis-gate/.

  Environment variables can override config values with the AEGIS_GATE_
  prefix, e.g. AEGIS_GATE_SERVER_ADDR=:9090. The plain PORT, POLICY_DIR,
  and OTEL_ENDPOINT variables are also honored.

Commands:
  start       Start the gateway server
  validate    Validate the policy files in a directory
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aegis-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
