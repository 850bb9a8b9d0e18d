package main

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestAddPlayerLimits(t *testing.T) {
	game := newQueensGame("TEST01")

	for i, name := range []string{"Ada", "Grace", "Edsger", "Barbara"} {
		if p := game.addPlayer(string(rune('a'+i)), name); p == nil {
			t.Fatalf("seat %d should be available", i)
		}
	}

	if p := game.addPlayer("e", "Donald"); p != nil {
		t.Fatal("fifth player should be rejected")
	}
	if p := game.addPlayer("f", "Ada"); p != nil {
		t.Fatal("duplicate name should be rejected")
	}
}

func TestInitializeDealsHands(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	if game.phase != phasePlaying || game.turnPhase != phaseAction {
		t.Fatalf("expected playing/action, got %s/%s", game.phase, game.turnPhase)
	}
	if game.currentPlayerIndex != 0 {
		t.Fatalf("first seat should act first, got index %d", game.currentPlayerIndex)
	}
	if len(game.sleepingQueens) != 12 {
		t.Fatalf("expected 12 sleeping queens, got %d", len(game.sleepingQueens))
	}
	for _, p := range game.players {
		if len(p.Hand) != startingHandSize {
			t.Fatalf("%s should hold %d cards, got %d", p.Name, startingHandSize, len(p.Hand))
		}
		if p.Score != 0 || len(p.AwakenedQueens) != 0 {
			t.Fatalf("%s should start with nothing, got score %d and %d queens", p.Name, p.Score, len(p.AwakenedQueens))
		}
	}
	if game.deck.DrawCount() != 64-2*startingHandSize {
		t.Fatalf("expected %d cards left in deck, got %d", 64-2*startingHandSize, game.deck.DrawCount())
	}
}

func TestNextTurnSkipsDisconnected(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.addPlayer("p3", "Edsger")
	game.initialize(NewQueensDeck())

	game.players[1].Connected = false
	game.nextTurn()
	if game.currentPlayer().ID != "p3" {
		t.Fatalf("expected p3 after skipping p2, got %s", game.currentPlayer().ID)
	}

	// A seat returns to rotation as soon as it reconnects.
	game.players[1].Connected = true
	game.nextTurn()
	if game.currentPlayer().ID != "p1" {
		t.Fatalf("expected p1, got %s", game.currentPlayer().ID)
	}
	game.nextTurn()
	if game.currentPlayer().ID != "p2" {
		t.Fatalf("expected p2 after reconnect, got %s", game.currentPlayer().ID)
	}
}

func TestNextTurnAllDisconnected(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	for _, p := range game.players {
		p.Connected = false
	}

	// Must terminate despite nobody being connected.
	game.nextTurn()
	game.nextTurn()
}

func TestQueenTransfersRecomputeScores(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	heart := game.sleepingQueen("queen_9") // 20 points
	if heart == nil {
		t.Fatal("heart queen should start asleep")
	}

	if !game.wakeQueen("queen_9", "p1") {
		t.Fatal("wakeQueen failed")
	}
	if game.players[0].Score != 20 {
		t.Fatalf("expected score 20 after waking, got %d", game.players[0].Score)
	}
	if len(game.sleepingQueens) != 11 {
		t.Fatalf("expected 11 sleeping queens, got %d", len(game.sleepingQueens))
	}

	if !game.stealQueen("queen_9", "p1", "p2") {
		t.Fatal("stealQueen failed")
	}
	if game.players[0].Score != 0 || game.players[1].Score != 20 {
		t.Fatalf("scores after steal: %d / %d, want 0 / 20", game.players[0].Score, game.players[1].Score)
	}

	if !game.sleepQueen("queen_9") {
		t.Fatal("sleepQueen failed")
	}
	if game.players[1].Score != 0 {
		t.Fatalf("expected score 0 after sleeping, got %d", game.players[1].Score)
	}
	if len(game.sleepingQueens) != 12 {
		t.Fatalf("expected 12 sleeping queens again, got %d", len(game.sleepingQueens))
	}

	if game.wakeQueen("queen_9", "p404") {
		t.Fatal("waking for an unknown player should fail")
	}
	if game.stealQueen("queen_404", "p1", "p2") {
		t.Fatal("stealing an unheld queen should fail")
	}
}

func TestCheckWinCondition(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	if game.checkWinCondition() != "" {
		t.Fatal("fresh game should have no winner")
	}

	// Five queens wins regardless of points for 2-3 players.
	p1 := game.players[0]
	p1.AwakenedQueens = []Queen{
		{ID: "q1", Points: 5}, {ID: "q2", Points: 5}, {ID: "q3", Points: 5},
		{ID: "q4", Points: 5}, {ID: "q5", Points: 5},
	}
	game.recalculateScore(p1)
	if game.checkWinCondition() != "p1" {
		t.Fatal("five queens should win a two-player game")
	}

	// Fifty points wins with fewer queens.
	p1.AwakenedQueens = []Queen{{ID: "q1", Points: 20}, {ID: "q2", Points: 20}, {ID: "q3", Points: 15}}
	game.recalculateScore(p1)
	if game.checkWinCondition() != "p1" {
		t.Fatal("55 points should win a two-player game")
	}

	// Four-player games use the lower thresholds.
	game.addPlayer("p3", "Edsger")
	game.addPlayer("p4", "Barbara")
	p1.AwakenedQueens = []Queen{{ID: "q1", Points: 10}, {ID: "q2", Points: 10}, {ID: "q3", Points: 10}, {ID: "q4", Points: 10}}
	game.recalculateScore(p1)
	if game.checkWinCondition() != "p1" {
		t.Fatal("four queens should win a four-player game")
	}
}

func TestCheckWinConditionAllQueens(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())
	game.allQueens = true

	p1 := game.players[0]
	p1.AwakenedQueens = []Queen{
		{ID: "q1", Points: 20}, {ID: "q2", Points: 20}, {ID: "q3", Points: 20},
		{ID: "q4", Points: 20}, {ID: "q5", Points: 20},
	}
	game.recalculateScore(p1)

	if game.checkWinCondition() != "" {
		t.Fatal("all-queens games run until the pool is empty")
	}

	game.sleepingQueens = nil
	if game.checkWinCondition() != "p1" {
		t.Fatal("highest score should win once the pool is empty")
	}
}

func TestConflictPairNeverCoHeld(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.addPlayer("p3", "Edsger")
	game.initialize(NewQueensDeck())

	// Random wake/steal/sleep sequences, each acquisition guarded the way
	// the session guards it: the cat and dog queens must never end up in
	// the same collection.
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 500; step++ {
		actor := game.players[rng.Intn(len(game.players))]

		switch rng.Intn(3) {
		case 0:
			if len(game.sleepingQueens) == 0 {
				continue
			}
			queen := game.sleepingQueens[rng.Intn(len(game.sleepingQueens))]
			if CatDogConflict(queen, actor.AwakenedQueens) {
				continue
			}
			game.wakeQueen(queen.ID, actor.ID)
		case 1:
			victim := game.players[rng.Intn(len(game.players))]
			if victim.ID == actor.ID || len(victim.AwakenedQueens) == 0 {
				continue
			}
			queen := victim.AwakenedQueens[rng.Intn(len(victim.AwakenedQueens))]
			if CatDogConflict(queen, actor.AwakenedQueens) {
				continue
			}
			game.stealQueen(queen.ID, victim.ID, actor.ID)
		case 2:
			if len(actor.AwakenedQueens) == 0 {
				continue
			}
			game.sleepQueen(actor.AwakenedQueens[rng.Intn(len(actor.AwakenedQueens))].ID)
		}

		for _, p := range game.players {
			hasCat, hasDog := false, false
			for _, q := range p.AwakenedQueens {
				switch q.Ability {
				case abilityCat:
					hasCat = true
				case abilityDog:
					hasDog = true
				}
			}
			if hasCat && hasDog {
				t.Fatalf("step %d: %s holds both halves of the conflict pair", step, p.Name)
			}
		}
	}
}

func TestPublicStateHidesSecrets(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	state := game.publicState()

	if state.Type != "gameState" {
		t.Fatalf("unexpected message type %q", state.Type)
	}
	for _, queen := range state.SleepingQueens {
		if !queen.Hidden {
			t.Fatalf("sleeping queen %s must be face down", queen.ID)
		}
	}
	for _, p := range state.Players {
		if p.HandCount != startingHandSize {
			t.Fatalf("expected hand count %d for %s, got %d", startingHandSize, p.Name, p.HandCount)
		}
	}
	if state.CurrentPlayerID != "p1" {
		t.Fatalf("expected current player p1, got %q", state.CurrentPlayerID)
	}
}

func TestHandMessageIdempotent(t *testing.T) {
	game := newQueensGame("TEST01")
	game.addPlayer("p1", "Ada")
	game.addPlayer("p2", "Grace")
	game.initialize(NewQueensDeck())

	first := game.handMessage(game.players[0])
	second := game.handMessage(game.players[0])

	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated hand snapshots must be identical when nothing changed")
	}
	if first.Type != "playerHand" {
		t.Fatalf("unexpected message type %q", first.Type)
	}
}
