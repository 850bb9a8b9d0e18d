package main

// Pure rule validation for the queens game. Nothing in this file mutates
// state; every function reports a verdict and a human-readable reason.

// WinCondition holds the thresholds a player must reach to win, either by
// queen count or by total points.
type WinCondition struct {
	Queens int
	Points int
}

// WinConditionFor returns the thresholds for a given player count: five
// queens or fifty points for 2-3 players, four queens or forty points for
// four.
func WinConditionFor(playerCount int) WinCondition {
	if playerCount >= 2 && playerCount <= 3 {
		return WinCondition{Queens: 5, Points: 50}
	}
	return WinCondition{Queens: 4, Points: 40}
}

// ValidateDiscard checks a discard combination of number cards:
// a single card, a pair of equal values, or an equation of 3-5 cards
// where the smaller values sum to the largest.
func ValidateDiscard(cards []Card) (bool, string) {
	if len(cards) == 0 {
		return false, "No cards provided"
	}

	for _, card := range cards {
		if card.Type != CardNumber || card.Value == 0 {
			return false, "All cards must be number cards"
		}
	}

	switch count := len(cards); {
	case count == 1:
		return true, "Valid single card"
	case count == 2:
		if cards[0].Value == cards[1].Value {
			return true, "Valid pair"
		}
		return false, "Two cards must be a pair"
	case count <= 5:
		sum, max := 0, 0
		for _, card := range cards {
			sum += card.Value
			if card.Value > max {
				max = card.Value
			}
		}
		// The smaller values sum to the largest exactly when the total
		// is twice the maximum.
		if sum == 2*max {
			return true, "Valid equation"
		}
		return false, "Sum of the smaller numbers must equal the largest number"
	default:
		return false, "Discard at most five cards"
	}
}

// ValidatePlay checks whether playing the given card is legal for the
// player in the current game state. Targets are taken from the message,
// not the card.
func ValidatePlay(game *QueensGame, playerID string, card Card, targetPlayerID, targetQueenID string) (bool, string) {
	switch card.Type {
	case CardKing:
		if targetQueenID == "" {
			return false, "Choose a sleeping queen to wake"
		}
		if game.sleepingQueen(targetQueenID) == nil {
			return false, "That queen is not sleeping"
		}
		return true, "Valid king play"

	case CardKnight, CardPotion:
		if targetPlayerID == "" {
			return false, "Choose a target player"
		}
		if targetPlayerID == playerID {
			return false, "Cannot target yourself"
		}
		target := game.player(targetPlayerID)
		if target == nil {
			return false, "Target player not found"
		}
		if len(target.AwakenedQueens) == 0 {
			return false, "Target player has no queens"
		}
		if resolveTargetQueen(target, targetQueenID) == nil {
			return false, "Target player does not have that queen"
		}
		return true, "Valid play"

	case CardDragon, CardWand:
		return false, "Counter cards are played through counterAction"

	default:
		return false, "This card cannot be played directly"
	}
}

// ValidateCounter checks a counter-card play: only the targeted player may
// respond, only during the counter window, and only with the card kind
// matching the pending attack.
func ValidateCounter(game *QueensGame, playerID string, card Card) (bool, string) {
	if game.turnPhase != phaseCounter || game.pendingAction == nil {
		return false, "Nothing to counter"
	}
	if game.pendingAction.TargetPlayerID != playerID {
		return false, "Only the targeted player may counter"
	}

	switch {
	case game.pendingAction.Type == CardKnight && card.Type == CardDragon:
		return true, "Valid dragon counter"
	case game.pendingAction.Type == CardPotion && card.Type == CardWand:
		return true, "Valid wand counter"
	default:
		return false, "That card does not block this attack"
	}
}

// CatDogConflict reports whether acquiring the queen would leave the
// player holding both halves of the cat/dog conflict pair.
func CatDogConflict(queen Queen, held []Queen) bool {
	if queen.Ability != abilityCat && queen.Ability != abilityDog {
		return false
	}
	for _, h := range held {
		if (queen.Ability == abilityCat && h.Ability == abilityDog) ||
			(queen.Ability == abilityDog && h.Ability == abilityCat) {
			return true
		}
	}
	return false
}

// resolveTargetQueen picks the target queen from a player's collection.
// An empty or "first" selector takes the first queen, preserving the
// original fixed-pick behavior.
func resolveTargetQueen(target *QueensPlayer, targetQueenID string) *Queen {
	if len(target.AwakenedQueens) == 0 {
		return nil
	}
	if targetQueenID == "" || targetQueenID == "first" {
		return &target.AwakenedQueens[0]
	}
	for i := range target.AwakenedQueens {
		if target.AwakenedQueens[i].ID == targetQueenID {
			return &target.AwakenedQueens[i]
		}
	}
	return nil
}
