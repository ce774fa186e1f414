package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor waits for a condition to become true within a timeout
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, errorMsg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error(errorMsg)
}

func TestSubscribe(t *testing.T) {
	eb := NewEventBus(10)

	var received atomic.Int32
	cancel := eb.Subscribe("load_data_request", func(Message) {
		received.Add(1)
	})

	eb.Publish("load_data_request", "msg1")
	eb.Publish("load_data_request", "msg2")
	eb.Publish("load_data_request", "msg3")

	waitFor(t, time.Second, func() bool {
		return received.Load() == 3
	}, "Expected 3 messages")

	cancel()
	cancel()

	beforeCancel := received.Load()
	eb.Publish("load_data_request", "msg4")
	time.Sleep(50 * time.Millisecond)

	if received.Load() != beforeCancel {
		t.Errorf("Expected no more messages after cancel, got %d", received.Load()-beforeCancel)
	}
	if eb.Subscribers("load_data_request") != 0 {
		t.Errorf("Expected subscription removed")
	}
}

func TestSubscribePreservesOrder(t *testing.T) {
	eb := NewEventBus(100)

	var mu sync.Mutex
	var got []int
	cancel := eb.Subscribe("ordered", func(msg Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg.Data.(int))
	})
	defer cancel()

	for i := range 50 {
		eb.Publish("ordered", i)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, "Expected 50 messages")

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("message %d out of order: %d", i, v)
		}
	}
}

func TestSubscribeAll(t *testing.T) {
	eb := NewEventBus(10)

	var mu sync.Mutex
	topics := map[string]int{}
	cancel := eb.Subscribe(All, func(msg Message) {
		mu.Lock()
		defer mu.Unlock()
		topics[msg.Topic]++
	})
	defer cancel()

	eb.Publish("connection_terminated", nil)
	eb.Publish("json_parse_error", nil)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return topics["connection_terminated"] == 1 && topics["json_parse_error"] == 1
	}, "Expected wildcard subscriber to see both topics")
}

func TestSubscribeOnce(t *testing.T) {
	eb := NewEventBus(10)

	var received atomic.Int32
	_ = eb.SubscribeOnce("test-once", func(Message) {
		received.Add(1)
	})

	eb.Publish("test-once", "msg1")
	eb.Publish("test-once", "msg2")
	eb.Publish("test-once", "msg3")

	waitFor(t, time.Second, func() bool {
		return received.Load() >= 1
	}, "Expected at least 1 message")

	time.Sleep(50 * time.Millisecond)

	if received.Load() != 1 {
		t.Errorf("SubscribeOnce should receive exactly 1 message, got %d", received.Load())
	}
}

func TestSubscribeOnceCancelBeforeReceive(t *testing.T) {
	eb := NewEventBus(10)

	var received atomic.Int32
	cancel := eb.SubscribeOnce("test-once-cancel", func(Message) {
		received.Add(1)
	})
	cancel()

	eb.Publish("test-once-cancel", "msg1")
	time.Sleep(50 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Expected 0 messages after cancel, got %d", received.Load())
	}
}

func TestSubscribeWithFilter(t *testing.T) {
	eb := NewEventBus(10)

	var received atomic.Int32
	cancel := eb.SubscribeWithFilter("test-filter", func(msg Message) bool {
		val, ok := msg.Data.(int)
		return ok && val > 5
	}, func(Message) {
		received.Add(1)
	})
	defer cancel()

	for _, v := range []int{1, 10, 3, 20, 5, 6} {
		eb.Publish("test-filter", v)
	}

	waitFor(t, time.Second, func() bool {
		return received.Load() == 3
	}, "Expected 3 filtered messages")
}

func TestPublishFullSubscriberDoesNotBlock(t *testing.T) {
	eb := NewEventBus(1)
	ch := eb.SubscribeOnChannel("full")

	done := make(chan struct{})
	go func() {
		eb.Publish("full", 1)
		eb.Publish("full", 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if msg := <-ch; msg.Data != 1 {
		t.Errorf("Expected first message kept, got %v", msg.Data)
	}
}

func TestUnsubscribe(t *testing.T) {
	eb := NewEventBus(10)

	ch1 := eb.SubscribeOnChannel("test-unsub")
	_ = eb.SubscribeOnChannel("test-unsub")

	eb.Unsubscribe("test-unsub")

	if subs := eb.Subscribers("test-unsub"); subs != 0 {
		t.Errorf("Expected 0 subscribers after Unsubscribe, got %d", subs)
	}
	if _, ok := <-ch1; ok {
		t.Errorf("Expected channel closed")
	}
}

func TestUnsubscribeChannel(t *testing.T) {
	eb := NewEventBus(10)

	ch := eb.SubscribeOnChannel("test-unsub-channel")
	other := eb.SubscribeOnChannel("test-unsub-channel")

	eb.UnsubscribeChannel("test-unsub-channel", ch)

	if subs := eb.Subscribers("test-unsub-channel"); subs != 1 {
		t.Errorf("Expected 1 subscriber after UnsubscribeChannel, got %d", subs)
	}

	eb.Publish("test-unsub-channel", "x")
	if msg := <-other; msg.Data != "x" {
		t.Errorf("Expected remaining subscriber to receive, got %v", msg.Data)
	}
}

func TestConcurrentPublish(t *testing.T) {
	eb := NewEventBus(1000)

	var received atomic.Int32
	cancel := eb.Subscribe("test-concurrent", func(Message) {
		received.Add(1)
	})
	defer cancel()

	var wg sync.WaitGroup
	numGoroutines := 10
	messagesPerGoroutine := 50

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range messagesPerGoroutine {
				eb.Publish("test-concurrent", j)
			}
		}()
	}
	wg.Wait()

	expected := int32(numGoroutines * messagesPerGoroutine)
	waitFor(t, time.Second, func() bool {
		return received.Load() == expected
	}, "Expected all concurrent messages to be received")
}

func TestPanickingCallbackIsRecovered(t *testing.T) {
	eb := NewEventBus(10)

	var received atomic.Int32
	cancel := eb.Subscribe("panic", func(msg Message) {
		received.Add(1)
		if msg.Data == "boom" {
			panic("boom")
		}
	})
	defer cancel()

	eb.Publish("panic", "boom")
	eb.Publish("panic", "ok")

	waitFor(t, time.Second, func() bool {
		return received.Load() == 2
	}, "Expected subscriber to survive a panic")
}

func TestClose(t *testing.T) {
	eb := NewEventBus(10)
	ch := eb.SubscribeOnChannel("closing")

	eb.Close()
	eb.Close()
	eb.Publish("closing", 1)

	if _, ok := <-ch; ok {
		t.Errorf("Expected channel closed by Close")
	}
	late := eb.SubscribeOnChannel("closing")
	if _, ok := <-late; ok {
		t.Errorf("Expected subscription after Close to be closed")
	}
}
