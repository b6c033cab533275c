// Command distdb is a CLI demo issuing SQL against a local node
// through pkg/client, in the spirit of the teacher's single-binary
// cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "distdb",
	Short: "distdb - an embeddable relational key-value store",
	Long: `distdb runs a single node of a SQL-subset key-value database
with WAL+snapshot durability, secondary indexes and a Raft-backed
replicated write path.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().Bool("bootstrap", true, "Bootstrap a single-node cluster on start")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
