package realtime

import "testing"

func TestHubDropsStaleVersions(t *testing.T) {
	h := NewHub()
	var got []int
	sub := h.Add("users/u/transactions", func(s Snapshot) { got = append(got, len(s)) })

	h.Publish("users/u/transactions", 2, make(Snapshot, 2))
	sub.Deliver(0, Snapshot{})
	h.Publish("users/u/transactions", 1, make(Snapshot, 1))
	h.Publish("users/u/transactions", 3, make(Snapshot, 3))

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected deliveries [2 3], got %v", got)
	}
}

func TestCancelInsideListener(t *testing.T) {
	h := NewHub()
	calls := 0
	var sub *Subscription
	sub = h.Add("p", func(Snapshot) {
		calls++
		sub.Cancel()
	})
	h.Publish("p", 1, nil)
	h.Publish("p", 2, nil)
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if h.Listeners("p") != 0 {
		t.Fatalf("subscription not removed")
	}
}

func TestPaths(t *testing.T) {
	uid, coll, ok := ParseUserPath(TransactionsPath("abc"))
	if !ok || uid != "abc" || coll != "transactions" {
		t.Fatalf("unexpected parse %q %q %v", uid, coll, ok)
	}
	if !IsTransactionsPath("users/x/transactions") || IsTransactionsPath(CardsPath("x")) {
		t.Fatalf("IsTransactionsPath misclassified")
	}
	for _, bad := range []string{"", "/users", "users/", "users//x"} {
		if ValidatePath(bad) == nil {
			t.Fatalf("%q should be invalid", bad)
		}
	}
}
