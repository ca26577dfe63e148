package approvals

import (
	"strings"
	"testing"
)

func TestRequestCreatesPending(t *testing.T) {
	s := New(t.TempDir())
	rec, err := s.Request(KindWebDomain, "docs.example.com")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("status = %s", rec.Status)
	}
	if !strings.HasPrefix(rec.ID, "a_") || len(rec.ID) != 34 {
		t.Fatalf("id = %q", rec.ID)
	}
	if rec.CreatedAt == "" {
		t.Fatal("created_at not stamped")
	}
}

func TestRequestIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.Request(KindWebDomain, "docs.example.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Request(KindWebDomain, "docs.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Fatalf("duplicate request created new record: %s vs %s", a.ID, b.ID)
	}
}

func TestResolveApprove(t *testing.T) {
	s := New(t.TempDir())
	rec, err := s.Request(KindRepoURL, "https://github.com/acme/widgets@main")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Resolve(rec.ID, true, "ops", "looks safe")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != StatusApproved || got.DecidedAt == "" || got.DecidedBy != "ops" || got.Notes != "looks safe" {
		t.Fatalf("record = %+v", got)
	}

	ok, id, err := s.IsApproved(KindRepoURL, "https://github.com/acme/widgets@main")
	if err != nil || !ok {
		t.Fatalf("IsApproved = %v, %v", ok, err)
	}
	if id != rec.ID {
		t.Fatalf("id = %s, want %s", id, rec.ID)
	}
}

func TestResolveIsOneWay(t *testing.T) {
	s := New(t.TempDir())
	rec, err := s.Request(KindWebDomain, "a.example")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(rec.ID, false, "ops", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(rec.ID, true, "ops", ""); err == nil {
		t.Fatal("re-resolving a denied record must fail")
	}

	ok, _, err := s.IsApproved(KindWebDomain, "a.example")
	if err != nil || ok {
		t.Fatalf("denied source reported approved")
	}
}

func TestDeniedStaysDeniedOnReRequest(t *testing.T) {
	s := New(t.TempDir())
	rec, err := s.Request(KindWebDomain, "evil.example")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(rec.ID, false, "ops", ""); err != nil {
		t.Fatal(err)
	}
	again, err := s.Request(KindWebDomain, "evil.example")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusDenied {
		t.Fatalf("status = %s, want DENIED", again.Status)
	}
}

func TestResolveRejectsBadID(t *testing.T) {
	s := New(t.TempDir())
	for _, id := range []string{"", "a_short", "../../x", "a_" + strings.Repeat("Z", 32)} {
		if _, err := s.Resolve(id, true, "ops", ""); err == nil {
			t.Fatalf("id %q accepted", id)
		}
	}
}

func TestListFilters(t *testing.T) {
	s := New(t.TempDir())
	web, err := s.Request(KindWebDomain, "one.example")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Request(KindRepoURL, "https://github.com/a/b@main"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(web.ID, true, "ops", ""); err != nil {
		t.Fatal(err)
	}

	pending, err := s.List(ListFilter{Status: StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Kind != KindRepoURL {
		t.Fatalf("pending = %+v", pending)
	}

	repos, err := s.List(ListFilter{Kind: KindRepoURL})
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 1 {
		t.Fatalf("repos = %+v", repos)
	}

	all, err := s.List(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d", len(all))
	}

	one, err := s.List(ListFilter{Limit: 1})
	if err != nil || len(one) != 1 {
		t.Fatalf("limit: %v, %v", one, err)
	}
}

func TestIsApprovedUnknownValue(t *testing.T) {
	s := New(t.TempDir())
	ok, _, err := s.IsApproved(KindWebDomain, "never.requested")
	if err != nil || ok {
		t.Fatalf("got %v, %v", ok, err)
	}
}
