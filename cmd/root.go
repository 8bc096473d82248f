package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/recstore/cmd/records"
	"github.com/ValentinKolb/recstore/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "recstore",
		Short: "schemaless records on top of cloud datastores",
		Long: fmt.Sprintf(`recstore (v%s)

Stores flat, schemaless records (field name -> value) addressed by kind and
integer id in Google Cloud Datastore, DynamoDB, a local bolt file or memory.
Records can be read, listed, created, updated and removed from the command
line or through the HTTP api started by "recstore serve".`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of recstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recstore v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(records.RecordCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
