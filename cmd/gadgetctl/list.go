package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/czx-lab/garuda/garuda"
	"github.com/spf13/cobra"
)

func listCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list <extension> <format>",
		Short: "List the gadgets able to open a file type",
		Example: `  gadgetctl list xml kgml
  gadgetctl list csv table --addr ws://core:9000/`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), c.Timeout)
			defer cancel()

			s, err := openSession(ctx, c)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.backend.RequestCompatibleGadgetList(args[0], args[1]); err != nil {
				return err
			}
			ev, err := s.wait(ctx, garuda.EventGetCompatibleGadgetListResponse)
			if err != nil {
				return err
			}

			if ev.Code != garuda.Success {
				warn(cmd, "no gadget for %s/%s: %s", args[0], args[1], ev.Code)
				return nil
			}

			gadgets := s.backend.CompatibleGadgets()
			success(cmd, "%d compatible gadget(s)", len(gadgets))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tPROVIDER\tGATEWAY")
			for _, g := range gadgets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Name, g.ID, g.Provider, g.GatewayID)
			}
			return w.Flush()
		},
	}
}
