package cmd

import (
	"github.com/spf13/cobra"
	"worker-render/config"
	server2 "worker-render/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start render API server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
