package cmd

import (
	"github.com/spf13/cobra"
	"worker-render/config"
	server2 "worker-render/server"
)

func workerLoop(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "start render worker poll loop",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunWorker(config)
		},
	}
}
