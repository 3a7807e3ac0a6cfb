package client

import "testing"

func TestBusInvokesInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int

	bus.On("evt", func(interface{}) { order = append(order, 1) })
	bus.On("evt", func(interface{}) { order = append(order, 2) })
	bus.On("evt", func(interface{}) { order = append(order, 3) })

	bus.Publish("evt", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("handler order = %v, want [1 2 3]", order)
	}
}

func TestBusDuplicateRegistrationIsNoop(t *testing.T) {
	bus := NewBus()
	calls := 0
	h := func(interface{}) { calls++ }

	bus.On("evt", h)
	bus.On("evt", h)
	bus.Publish("evt", nil)

	if calls != 1 {
		t.Fatalf("duplicate registration fired %d times, want 1", calls)
	}
}

func TestBusOffRemovesByIdentity(t *testing.T) {
	bus := NewBus()
	aCalls, bCalls := 0, 0
	a := func(interface{}) { aCalls++ }
	b := func(interface{}) { bCalls++ }

	bus.On("evt", a)
	bus.On("evt", b)
	bus.Off("evt", a)
	bus.Publish("evt", nil)

	if aCalls != 0 {
		t.Errorf("removed handler fired %d times", aCalls)
	}
	if bCalls != 1 {
		t.Errorf("remaining handler fired %d times, want 1", bCalls)
	}

	// Removing something never registered must not panic or alter state.
	bus.Off("evt", a)
	bus.Off("other", b)
}

func TestBusPanicIsolatesHandlers(t *testing.T) {
	bus := NewBus()
	ran := false

	bus.On("evt", func(interface{}) { panic("boom") })
	bus.On("evt", func(interface{}) { ran = true })

	bus.Publish("evt", nil)

	if !ran {
		t.Fatal("handler after a panicking one did not run")
	}
}

func TestBusPublishUnknownTypeIsNoop(t *testing.T) {
	bus := NewBus()
	bus.Publish("nobody-listens", struct{}{})
}
