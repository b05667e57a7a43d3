package lock

import "testing"

func TestGranterTryAcquireAndRelease(t *testing.T) {
	g := NewGranter()

	if !g.TryAcquire("g1") {
		t.Fatal("expected first acquire to succeed")
	}
	if g.TryAcquire("g1") {
		t.Fatal("expected second acquire to be refused while held")
	}

	g.Release("g1")
	if !g.TryAcquire("g1") {
		t.Fatal("expected acquire to succeed again after release")
	}
}

func TestGranterReleaseUnheldIsNoop(t *testing.T) {
	g := NewGranter()
	g.Release("never-held")
	if !g.TryAcquire("never-held") {
		t.Fatal("releasing an unheld group should not block a later acquire")
	}
}

func TestGranterIndependentGroups(t *testing.T) {
	g := NewGranter()
	if !g.TryAcquire("a") || !g.TryAcquire("b") {
		t.Fatal("distinct groups should not contend with each other")
	}
}
