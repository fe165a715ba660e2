/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clusterauth/scope-engine/internal/trie"
)

var inspectQuery string

var inspectTrieCmd = &cobra.Command{
	Use:   "inspect-trie",
	Short: "Build the role trie from --roles and show which roles --query matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		roles, err := loadRoles(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan roles: %w", err)
		}

		root, sets := trie.Build(roles)
		fmt.Printf("%d roles, %d trie set entries\n", len(roles), sets.Len())

		if inspectQuery == "" {
			return nil
		}
		idx := trie.Execute(root, inspectQuery)
		matched := sets.Flatten(idx)
		fmt.Printf("query %q matches %d role(s):\n", inspectQuery, len(matched))
		for _, roleID := range matched {
			fmt.Println(" -", roleID)
		}
		return nil
	},
}

func init() {
	inspectTrieCmd.Flags().StringVar(&inspectQuery, "query", "", "a role-id query to execute against the built trie, e.g. client-id:root")
	rootCmd.AddCommand(inspectTrieCmd)
}
