package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ent0n29/voicedirect/internal/persona"
)

var (
	idStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func newPersonasCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, p := range persona.All() {
				fmt.Fprintf(out, "%s  %s  %s\n", idStyle.Render(string(p.ID)), p.Label, dimStyle.Render("voice "+p.Voice()))
				if verbose {
					fmt.Fprintln(out, dimStyle.Render(p.Prompt))
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print each persona's prompt")
	return cmd
}
