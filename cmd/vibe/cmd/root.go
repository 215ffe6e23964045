package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vibe",
	Short: "vibe is a session and workspace provisioning service",
	Long: `Backend session management and zero-click workspace provisioning
for chat-driven app building. Complete documentation is available at
https://github.com/avikhandakar-dev/vibe`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
