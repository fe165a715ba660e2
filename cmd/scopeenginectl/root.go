/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/clusterauth/scope-engine/internal/system"
)

var (
	rolesPath   string
	clientsPath string
	verbosity   int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scopeenginectl",
	Short: "Inspect and drive a file-backed scope-resolution catalog",
	Long: `scopeenginectl is ambient tooling around internal/catalog: it loads roles
and clients from two JSON files and lets you resolve scopes, force a
reload, or inspect the compiled role trie, without standing up a real
RoleSource/ClientSource.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger().Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rolesPath, "roles", "roles.json", "path to the JSON role catalog")
	rootCmd.PersistentFlags().StringVar(&clientsPath, "clients", "clients.json", "path to the JSON client list")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
}

// logger returns a plain stdout logr.Logger, the klog-free stand-in for
// what cmd/root.go wires against klog.NewKlogr() in a cluster deployment.
func logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			os.Stdout.WriteString(prefix + ": " + args + "\n")
			return
		}
		os.Stdout.WriteString(args + "\n")
	}, funcr.Options{Verbosity: verbosity})
}
