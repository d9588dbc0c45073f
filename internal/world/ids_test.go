package world

import "testing"

func TestContainerIDRoundTrip(t *testing.T) {
	id := ContainerID("CHEST", Vec3{X: 12, Y: 0, Z: -9})
	typ, pos, ok := ParseContainerID(id)
	if !ok {
		t.Fatalf("ParseContainerID failed for %q", id)
	}
	if typ != "CHEST" || pos != (Vec3{X: 12, Y: 0, Z: -9}) {
		t.Fatalf("unexpected parse result: typ=%q pos=%+v", typ, pos)
	}
}

func TestParseContainerIDRejectsInvalid(t *testing.T) {
	for _, id := range []string{"", "CHEST", "CHEST@1,2", "CHEST@a,b,c"} {
		if _, _, ok := ParseContainerID(id); ok {
			t.Fatalf("expected invalid id: %q", id)
		}
	}
}

func TestSortByDistance(t *testing.T) {
	ps := []Vec3{{X: 5}, {X: -1}, {X: 1}, {Z: 3}}
	SortByDistance(Vec3{}, ps)
	want := []Vec3{{X: -1}, {X: 1}, {Z: 3}, {X: 5}}
	for i := range want {
		if ps[i] != want[i] {
			t.Fatalf("order[%d]: got %+v want %+v", i, ps[i], want[i])
		}
	}
}

func TestTradeOfferRemaining(t *testing.T) {
	if got := (TradeOffer{MaxUses: 12, Uses: 10}).Remaining(); got != 2 {
		t.Fatalf("Remaining: got %d want 2", got)
	}
	if got := (TradeOffer{MaxUses: 3, Uses: 3}).Remaining(); got != 0 {
		t.Fatalf("Remaining exhausted: got %d", got)
	}
	if got := (TradeOffer{Disabled: true}).Remaining(); got != 0 {
		t.Fatalf("Remaining disabled: got %d", got)
	}
}
