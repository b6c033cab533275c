package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Start a local node and print its status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	status := c.GetStatus()
	fmt.Printf("node_id:       %s\n", status.NodeID)
	fmt.Printf("running:       %t\n", status.Running)
	fmt.Printf("is_leader:     %t\n", status.IsLeader)
	fmt.Printf("cluster_nodes: %v\n", status.ClusterNodes)
	fmt.Printf("tables:        %v\n", status.Tables)
	return nil
}
