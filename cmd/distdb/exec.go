package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"distdb/internal/config"
	"distdb/pkg/client"
)

var execCmd = &cobra.Command{
	Use:   "exec [sql]",
	Short: "Start a local node and run a single SQL statement",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func newClientFromFlags(cmd *cobra.Command) (*client.Client, error) {
	configPath, _ := cmd.Flags().GetString("config")
	bootstrap, _ := cmd.Flags().GetBool("bootstrap")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return client.New(cfg, bootstrap)
}

func runExec(cmd *cobra.Command, args []string) error {
	c, err := newClientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Execute(args[0])
	if err != nil {
		return err
	}
	if result.Status != "success" {
		return fmt.Errorf("%s", result.Message)
	}

	fmt.Printf("status: %s\n", result.Status)
	if result.InsertedKey != "" {
		fmt.Printf("inserted key: %s\n", result.InsertedKey)
	}
	if result.RowsAffected > 0 {
		fmt.Printf("rows affected: %d\n", result.RowsAffected)
	}
	for _, row := range result.Rows {
		fmt.Printf("%v\n", row)
	}
	return nil
}
