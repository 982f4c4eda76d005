// Command omnode runs one peer node. Per spec.md §1, command-line
// argument parsing, logging setup, and socket bootstrap are external
// collaborators the core protocol doesn't care about; this file is
// exactly that boundary, grounded structurally on the teacher pack's
// cobra usage (mcastellin-golang-mastery's remote-procedure-call/cmd)
// rather than on the copied teacher's own main.go, which used stdlib
// flag.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigFile  string
	flagHost        string
	flagPort        int
	flagConsolePort int
	flagAdminAddr   string
	flagSeeds       []string
	flagLieMode     bool
	flagLieRate     float64
	flagDevLog      bool
)

var rootCmd = &cobra.Command{
	Use:   "omnode",
	Short: "An Oral-Messaging Byzantine agreement peer node",
	Long: `omnode runs one peer of a fleet that maintains a shared five-slot
word array using the classic Oral-Messaging (OM) consensus protocol over
UDP, with epidemic gossip for peer discovery.`,
	RunE: runServe,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfigFile, "config", "", "path to a JSON config file (overrides defaults, overridden by flags)")
	rootCmd.Flags().StringVar(&flagHost, "host", "", "UDP bind host")
	rootCmd.Flags().IntVar(&flagPort, "port", -1, "UDP bind port (0 = ephemeral)")
	rootCmd.Flags().IntVar(&flagConsolePort, "console-port", -1, "console TCP bind port (0 = ephemeral)")
	rootCmd.Flags().StringVar(&flagAdminAddr, "admin-address", "", "admin HTTP introspection bind address")
	rootCmd.Flags().StringSliceVar(&flagSeeds, "seed", nil, "additional seed peer, host:port (repeatable)")
	rootCmd.Flags().BoolVar(&flagLieMode, "lie", false, "start with fault injection enabled")
	rootCmd.Flags().Float64Var(&flagLieRate, "lie-rate", 1.0, "fault injection rate in [0,1] when --lie is set")
	rootCmd.Flags().BoolVar(&flagDevLog, "dev-log", false, "use human-readable development logging instead of JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
