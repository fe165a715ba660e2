/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clusterauth/scope-engine/internal/catalog/filesource"
	"github.com/clusterauth/scope-engine/pkg/model"
)

var rolePatchFile string
var clientPatchFile string

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rescan --roles and --clients and print the resulting counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		roles, err := loadRoles(ctx)
		if err != nil {
			return fmt.Errorf("scan roles: %w", err)
		}

		clients := filesource.NewClientSource(clientsPath)
		var clientCount int
		err = clients.Scan(ctx, func(_ model.Client) error {
			clientCount++
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan clients: %w", err)
		}

		fmt.Printf("roles: %d\n", len(roles))
		fmt.Printf("clients: %d\n", clientCount)
		return nil
	},
}

var reloadRoleCmd = &cobra.Command{
	Use:   "reload-role <roleID>",
	Short: "Apply a JSON Patch to a single role in --roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rolePatchFile == "" {
			return fmt.Errorf("reload-role requires --patch")
		}
		patch, err := os.ReadFile(rolePatchFile)
		if err != nil {
			return fmt.Errorf("read patch file: %w", err)
		}
		src := filesource.NewRoleSource(rolesPath)
		if err := src.ApplyPatch(cmd.Context(), args[0], patch); err != nil {
			return fmt.Errorf("apply patch: %w", err)
		}
		fmt.Printf("role %q patched\n", args[0])
		return nil
	},
}

var reloadClientCmd = &cobra.Command{
	Use:   "reload-client <clientID>",
	Short: "Apply a JSON Patch to a single client in --clients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if clientPatchFile == "" {
			return fmt.Errorf("reload-client requires --patch")
		}
		patch, err := os.ReadFile(clientPatchFile)
		if err != nil {
			return fmt.Errorf("read patch file: %w", err)
		}
		src := filesource.NewClientSource(clientsPath)
		if err := src.ApplyPatch(cmd.Context(), args[0], patch); err != nil {
			return fmt.Errorf("apply patch: %w", err)
		}
		fmt.Printf("client %q patched\n", args[0])
		return nil
	},
}

func init() {
	reloadRoleCmd.Flags().StringVar(&rolePatchFile, "patch", "", "path to a JSON Patch (RFC 6902) document")
	reloadClientCmd.Flags().StringVar(&clientPatchFile, "patch", "", "path to a JSON Patch (RFC 6902) document")
	rootCmd.AddCommand(reloadCmd, reloadRoleCmd, reloadClientCmd)
}
