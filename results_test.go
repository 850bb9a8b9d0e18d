package main

import (
	"testing"
)

func TestResultStoreRoundTrip(t *testing.T) {
	store, err := OpenResultStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	entries := []ResultEntry{
		{Name: "Ada", Score: 55, Collected: 5},
		{Name: "Grace", Score: 30, Collected: 3},
	}
	if err := store.record("queens", "ABC123", "Ada", entries); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	recent, err := store.Recent("queens", 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 result, got %d", len(recent))
	}
	if recent[0].Winner != "Ada" || recent[0].SessionID != "ABC123" || recent[0].Game != "queens" {
		t.Fatalf("unexpected row %+v", recent[0])
	}
	if recent[0].FinishedAt.IsZero() {
		t.Fatal("finished_at should be set")
	}

	scores, err := store.Scores("queens", "ABC123")
	if err != nil {
		t.Fatalf("scores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(scores))
	}
	if scores[0].Name != "Ada" || scores[0].Score != 55 || scores[0].Collected != 5 {
		t.Fatalf("scores should come back best first, got %+v", scores[0])
	}
}

func TestResultStoreScopesByGame(t *testing.T) {
	store, err := OpenResultStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if err := store.record("queens", "AAAAAA", "Ada", []ResultEntry{{Name: "Ada", Score: 50}}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := store.record("kariba", "BBBBBB", "Grace", []ResultEntry{{Name: "Grace", Score: 12, Collected: 12}}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	recent, err := store.Recent("kariba", 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Winner != "Grace" {
		t.Fatalf("expected only the kariba result, got %+v", recent)
	}

	scores, err := store.Scores("queens", "BBBBBB")
	if err != nil {
		t.Fatalf("scores failed: %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("a session id from another game must not match, got %+v", scores)
	}
}
