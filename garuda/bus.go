package garuda

import "github.com/czx-lab/garuda/eventbus"

// BusListener publishes every event on bus under its id, so that several
// consumers can follow one Backend. Subscribers receive the Event as
// eventbus.Message.Data.
func BusListener(bus *eventbus.EventBus) Listener {
	return func(ev Event) {
		bus.Publish(string(ev.ID), ev)
	}
}

// Chain calls every listener in order.
func Chain(listeners ...Listener) Listener {
	return func(ev Event) {
		for _, l := range listeners {
			if l != nil {
				l(ev)
			}
		}
	}
}
