package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicedirect",
		Short: "Push-to-talk voice chat with a persona",
		Long: `voicedirect records a spoken turn, transcribes it, asks a language model for a
reply in the selected persona's voice, and speaks the reply back.

Settings come from the environment; a .env file in the working directory is read
when present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(), newConsoleCmd(), newPersonasCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
