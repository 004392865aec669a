package main

import (
	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/registry"
	"github.com/qmjianda/loglayout-sub001/internal/tui"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

func newViewCmd(a *app) *cobra.Command {
	var layers layerFlags
	var follow bool
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Open a log file in the terminal viewer",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.quiet = true
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := registry.OpenRequest{Path: args[0], Follow: follow || a.cfg.Source.Follow}
			if !layers.empty() {
				list, err := layers.build(a)
				if err != nil {
					return err
				}
				req.Layers = list
			}

			comp, err := view.NewCompositor(a.cfg.Server.Background)
			if err != nil {
				return err
			}
			sessions := newRegistry(a, nil)
			defer sessions.CloseAll()
			sess, err := sessions.Open(req)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), sess, comp)
		},
	}
	layers.register(cmd)
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep reading the file as it grows")
	return cmd
}
