package main

import (
	"github.com/czx-lab/garuda/garuda"
	"github.com/spf13/cobra"
)

func listenCmd(load loader) *cobra.Command {
	var ack int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and print every event from the broker",
		Long: `Stay connected and print every event until interrupted or until the
broker closes the connection.

With --ack, load requests and notifications addressed to this gadget are
answered with the given result code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			dialCtx, cancel := withTimeout(ctx, c.Timeout)
			s, err := openSession(dialCtx, c)
			cancel()
			if err != nil {
				return err
			}
			defer s.close()

			success(cmd, "listening as %s (%s)", s.backend.GadgetName(), s.backend.GadgetID())
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-s.events:
					if !ok {
						return nil
					}
					ev := msg.Data.(garuda.Event)
					if ev.HasCode() {
						info(cmd, "%s [%s] %s", ev.ID, ev.Code, describe(ev))
					} else {
						info(cmd, "%s %s", ev.ID, describe(ev))
					}

					if ev.ID == garuda.EventConnectionTerminated {
						return nil
					}
					if ack > 0 {
						if err := answer(s.backend, ev, garuda.ResultCode(ack)); err != nil {
							warn(cmd, "cannot answer %s: %v", ev.ID, err)
						}
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&ack, "ack", 0, "answer requests with this result code, 0 to stay silent")

	return cmd
}

func answer(b *garuda.Backend, ev garuda.Event, code garuda.ResultCode) error {
	switch p := ev.Payload.(type) {
	case garuda.LoadDataPayload:
		return b.ResponseLoadData(p.Gadget.Name, p.Gadget.ID, code)
	case garuda.LoadGadgetPayload:
		return b.ResponseLoadGadget(p.Gadget.Name, p.Gadget.ID, code)
	case garuda.NotificationPayload:
		return b.ResponseSendNotificationToGadget(b.GadgetName(), b.GadgetID(), code)
	}
	return nil
}
