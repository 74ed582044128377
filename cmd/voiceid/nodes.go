package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/701789262a/backend-dailychat/internal/dispatch"
	"github.com/701789262a/backend-dailychat/internal/node"
)

func newNodesCommand(_ *commandContext) *cobra.Command {
	var (
		registryURL string
		window      time.Duration
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Show the nodes the registry currently sees",
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := node.NewRemote(node.StaticURL(registryURL), timeout)
			if err != nil {
				return err
			}
			recs, err := src.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			node.RenderTable(cmd.OutOrStdout(), recs, time.Now(), window)
			return nil
		},
	}
	cmd.Flags().StringVar(&registryURL, "registry", "http://localhost:5001", "Registry base URL")
	cmd.Flags().DurationVar(&window, "window", dispatch.DefaultStaleness, "Staleness window for the fresh column")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}
