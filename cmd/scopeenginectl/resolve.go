/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clusterauth/scope-engine/internal/catalog/filesource"
	"github.com/clusterauth/scope-engine/internal/expand"
	"github.com/clusterauth/scope-engine/internal/resolver"
	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <scope> [scope...]",
	Short: "Resolve a set of scopes against the role catalog in --roles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		roles, err := loadRoles(ctx)
		if err != nil {
			return err
		}

		result, err := expand.Expand(roles)
		if err != nil {
			return fmt.Errorf("expand roles: %w", err)
		}

		input := make(scope.ScopeSet, len(args))
		for i, s := range args {
			input[i] = scope.Scope(s)
		}

		out := resolver.Resolve(result.Trie, result.ScopeSets, scope.Normalize(input))
		for _, s := range out {
			fmt.Println(string(s))
		}
		return nil
	},
}

func loadRoles(ctx context.Context) ([]model.Role, error) {
	src := filesource.NewRoleSource(rolesPath)
	var roles []model.Role
	err := src.Scan(ctx, func(r model.Role) error {
		roles = append(roles, r)
		return nil
	})
	return roles, err
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
