package main

import (
	"github.com/czx-lab/garuda/garuda"
	"github.com/spf13/cobra"
)

func notifyCmd(load loader) *cobra.Command {
	var (
		typ  int
		name string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "notify <message>",
		Short: "Send a notification to the core",
		Long: `Send a notification to the core on behalf of a gadget. The core does not
answer; the command succeeds once the message is written.

Types: 602 bring to front, 603 error message, 604 terminate.`,
		Args: cobra.ExactArgs(1),
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

			gadget := garuda.Gadget{Name: s.backend.GadgetName(), ID: s.backend.GadgetID()}
			if len(name) > 0 {
				gadget.Name = name
			}
			if len(id) > 0 {
				gadget.ID = id
			}

			if err := s.backend.SendNotificationToCore(gadget, garuda.ResultCode(typ), args[0]); err != nil {
				return err
			}
			success(cmd, "notification %s sent for %s", garuda.ResultCode(typ), gadget)
			return nil
		},
	}

	cmd.Flags().IntVar(&typ, "type", int(garuda.NotificationBringToFront), "notification type")
	cmd.Flags().StringVar(&name, "gadget-name", "", "gadget the notification is about, defaults to self")
	cmd.Flags().StringVar(&id, "gadget-id", "", "id of that gadget")

	return cmd
}
