package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/czx-lab/garuda/eventbus"
	"github.com/czx-lab/garuda/garuda"
	netmetrics "github.com/czx-lab/garuda/network/metrics"
	"github.com/czx-lab/garuda/prometheus"
	"github.com/czx-lab/garuda/xlog"
	"go.uber.org/zap"
)

var errTerminated = errors.New("gadgetctl: connection to core terminated")

// session is one activated backend whose events are fanned out on a bus.
type session struct {
	backend *garuda.Backend
	bus     *eventbus.EventBus
	events  <-chan eventbus.Message
}

func openSession(ctx context.Context, c *Config) (*session, error) {
	xlog.Load(&c.Log)

	var opts []garuda.Option
	if c.Prometheus.Port > 0 {
		addr, err := prometheus.Start(c.Prometheus)
		if err != nil {
			return nil, err
		}
		xlog.Write().Info("metrics listening", zap.String("addr", addr))
		opts = append(opts, garuda.WithMetrics(netmetrics.NewClientMetrics(netmetrics.ClientMetricsConf{
			Namespace: "garuda",
			Subsystem: "gadget",
		})))
	}

	bus := eventbus.NewEventBus(256)
	backend, err := garuda.NewBackend(c.Backend, garuda.BusListener(bus), opts...)
	if err != nil {
		bus.Close()
		return nil, err
	}

	s := &session{
		backend: backend,
		bus:     bus,
		events:  bus.SubscribeOnChannel(eventbus.All),
	}
	if err := backend.Initialize(ctx); err != nil {
		s.close()
		return nil, err
	}

	return s, nil
}

// wait returns the first event among ids. connection_terminated and
// activation failures end the wait with an error.
func (s *session) wait(ctx context.Context, ids ...garuda.EventID) (garuda.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return garuda.Event{}, ctx.Err()
		case msg, ok := <-s.events:
			if !ok {
				return garuda.Event{}, errTerminated
			}
			ev := msg.Data.(garuda.Event)
			for _, id := range ids {
				if ev.ID == id {
					return ev, nil
				}
			}

			switch ev.ID {
			case garuda.EventConnectionTerminated:
				return ev, fmt.Errorf("%w: %s", errTerminated, describe(ev))
			case garuda.EventActivateGadgetResponse:
				return ev, fmt.Errorf("gadgetctl: activation refused: %s", ev.Code)
			}
		}
	}
}

func (s *session) close() {
	s.backend.StopBackend()
	s.bus.Close()
	_ = xlog.Sync()
}

func describe(ev garuda.Event) string {
	switch p := ev.Payload.(type) {
	case garuda.ErrorPayload:
		if p.Err != nil {
			return fmt.Sprintf("%s: %v", p.Message, p.Err)
		}
		return p.Message
	case garuda.Gadget:
		return p.String()
	case garuda.LoadDataPayload:
		return fmt.Sprintf("from %s data=%v", p.Gadget, p.Data)
	case garuda.LoadGadgetPayload:
		return fmt.Sprintf("%s path=%s", p.Gadget, p.Path)
	case garuda.NotificationPayload:
		return fmt.Sprintf("%q for %s", p.Message, p.Gadget)
	case nil:
		return ""
	}
	return fmt.Sprint(ev.Payload)
}
