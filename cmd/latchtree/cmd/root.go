/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/latchtree/pkg/config"
)

var configPath string
var serverAddr string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "latchtree",
	Short: "latchtree - concurrent index server",
	Long: `latchtree runs a PALM batched engine and a set of B-link/Masstree/ART
indexes behind a small HTTP control plane.`,
}

// Execute adds all child commands to the root command. Called once by
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults to built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://127.0.0.1:8080", "address of a running latchtree server, for client subcommands")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	if !config.ConfigExists(configPath) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}
	return config.LoadConfig(configPath)
}
