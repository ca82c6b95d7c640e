package session

import (
	"slices"
	"testing"
)

func TestPage_Navigate(t *testing.T) {
	p := NewProvider()
	pg := NewPage(p)
	resets := 0
	p.Subscribe(func(c Change) {
		if c.Action.Kind.String() == "reset" {
			resets++
		}
	})

	if pg.Navigate("chat-1") {
		t.Error("first navigation reported a reset")
	}
	p.ProcessDataPart(streamPart("a1", "facility-map", nil))

	if pg.Navigate("chat-1") {
		t.Error("same-chat navigation reported a reset")
	}
	if p.State().Current == nil {
		t.Fatal("same-chat navigation cleared state")
	}

	if !pg.Navigate("chat-2") {
		t.Error("navigation to another chat did not reset")
	}
	if s := p.State(); s.Current != nil || len(s.Types) != 0 || len(s.History) != 0 {
		t.Errorf("stale state leaked across chats: %+v", s)
	}
	if pg.ChatID() != "chat-2" {
		t.Errorf("ChatID = %q, want chat-2", pg.ChatID())
	}
	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
}

func TestRegistry_IndependentSessions(t *testing.T) {
	r, err := NewRegistry(4)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	s1, created := r.Open("tab-1")
	if !created {
		t.Error("first Open did not create")
	}
	s2, _ := r.Open("tab-2")

	s1.Provider.ProcessDataPart(streamPart("a1", "facility-map", nil))

	if s2.Provider.State().Current != nil {
		t.Error("session state leaked between tabs")
	}
	again, created := r.Open("tab-1")
	if created || again != s1 {
		t.Error("second Open did not return the existing session")
	}
	if again.Page.Provider() != again.Provider {
		t.Error("page not bound to session provider")
	}
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	var opened, evicted []string
	r, err := NewRegistry(2,
		WithOnOpen(func(s *Session) { opened = append(opened, s.ID) }),
		WithOnEvict(func(s *Session) { evicted = append(evicted, s.ID) }),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	r.Open("a")
	r.Open("b")
	r.Get("a")
	r.Open("c")

	if !slices.Equal(evicted, []string{"b"}) {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if !slices.Equal(opened, []string{"a", "b", "c"}) {
		t.Errorf("opened = %v, want [a b c]", opened)
	}
	if _, ok := r.Get("b"); ok {
		t.Error("evicted session still present")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if !slices.Equal(r.IDs(), []string{"a", "c"}) {
		t.Errorf("IDs = %v, want [a c]", r.IDs())
	}

	if !r.Remove("a") {
		t.Error("Remove(a) = false")
	}
	if r.Remove("a") {
		t.Error("second Remove(a) = true")
	}
	if !slices.Equal(evicted, []string{"b", "a"}) {
		t.Errorf("evicted = %v, want [b a]", evicted)
	}
}

func TestRegistry_DefaultSize(t *testing.T) {
	r, err := NewRegistry(0)
	if err != nil {
		t.Fatalf("NewRegistry(0): %v", err)
	}
	for i := range 10 {
		r.Open(string(rune('a' + i)))
	}
	if r.Len() != 10 {
		t.Errorf("Len = %d, want 10", r.Len())
	}
}

func TestRegistry_PeekDoesNotRefresh(t *testing.T) {
	var evicted []string
	r, err := NewRegistry(2, WithOnEvict(func(s *Session) { evicted = append(evicted, s.ID) }))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a, _ := r.Open("a")
	r.Open("b")
	if got, ok := r.Peek("a"); !ok || got != a {
		t.Fatalf("Peek(a) = %v, %v", got, ok)
	}
	r.Open("c")

	if !slices.Equal(evicted, []string{"a"}) {
		t.Errorf("evicted = %v, want [a]", evicted)
	}
	if _, ok := r.Peek("a"); ok {
		t.Error("Peek found an evicted session")
	}
}
