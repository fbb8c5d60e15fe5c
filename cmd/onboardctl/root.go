package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	defaultServer       = "http://localhost:8060"
	defaultRegistryPath = "./data/registry/demos.json"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "onboardctl",
		Short:         "Onboard businesses and inspect their demos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	root.AddCommand(newOnboardCommand(), newDemosCommand())
	return root
}
