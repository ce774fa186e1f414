package main

import (
	"encoding/json"
	"fmt"

	"github.com/czx-lab/garuda/garuda"
	"github.com/spf13/cobra"
)

func sendCmd(load loader) *cobra.Command {
	var (
		stream bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "send <target-name> <target-id> <data>",
		Short: "Send data to another gadget through the broker",
		Example: `  gadgetctl send Cytoscape 3f1c... /tmp/hsa00010.xml
  gadgetctl send Viewer 9a2e... '{"rows":[1,2]}' --json --stream`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any = args[2]
			if raw {
				if err := json.Unmarshal([]byte(args[2]), &data); err != nil {
					return fmt.Errorf("gadgetctl: data is not json: %w", err)
				}
			}

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

			if err := s.backend.SendDataToGadget(data, args[0], args[1], stream); err != nil {
				return err
			}
			ev, err := s.wait(ctx, garuda.EventSendDataToGadgetResponse)
			if err != nil {
				return err
			}

			if ev.Code != garuda.Success {
				return fmt.Errorf("gadgetctl: broker refused data: %s", ev.Code)
			}
			success(cmd, "delivered to %s", describe(ev))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "mark the data as a stream chunk")
	cmd.Flags().BoolVar(&raw, "json", false, "parse data as json instead of sending a string")

	return cmd
}
