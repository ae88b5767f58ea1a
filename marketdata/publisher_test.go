package marketdata

import (
	"testing"
	"time"
)

func TestPublisherFansOut(t *testing.T) {
	pub := NewPublisher(4)
	a := pub.Subscribe()
	b := pub.Subscribe()

	tick := Tick{Underlying: "BTC", Bid: 100, Ask: 101, At: time.Now()}
	pub.Publish(tick)

	for name, ch := range map[string]<-chan Tick{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.Underlying != "BTC" {
				t.Fatalf("%s received %+v", name, got)
			}
		default:
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestPublisherDropsWhenSlow(t *testing.T) {
	pub := NewPublisher(1)
	ch := pub.Subscribe()

	pub.Publish(Tick{Underlying: "BTC", Bid: 100, Ask: 101})
	pub.Publish(Tick{Underlying: "BTC", Bid: 102, Ask: 103})

	if pub.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", pub.Dropped())
	}
	got := <-ch
	if got.Bid != 100 {
		t.Fatalf("kept tick bid = %f, want the first (100)", got.Bid)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second tick %+v", extra)
	default:
	}
}

func TestPublisherClose(t *testing.T) {
	pub := NewPublisher(1)
	ch := pub.Subscribe()
	pub.Close()
	if _, open := <-ch; open {
		t.Fatalf("channel still open after Close")
	}
}
