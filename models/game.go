// models/game.go
package models

import "strings"

// Game is the closed set of minigames that can submit activity sessions.
type Game string

const (
	GameRunner  Game = "runner" // distance-based
	GameSnake   Game = "snake"
	GameBlocks  Game = "blocks"
	GameFlappy  Game = "flappy"
	GameUnknown Game = "unknown" // legacy / unclassified submissions
)

// AllGames lists every enumerated game, default last.
var AllGames = []Game{GameRunner, GameSnake, GameBlocks, GameFlappy, GameUnknown}

var gameAliases = map[string]Game{
	"runner":  GameRunner,
	"run":     GameRunner,
	"running": GameRunner,
	"snake":   GameSnake,
	"blocks":  GameBlocks,
	"tetris":  GameBlocks,
	"flappy":  GameFlappy,
	"bird":    GameFlappy,
	"unknown": GameUnknown,
}

// ParseGame never fails: anything it does not recognize becomes GameUnknown,
// which carries the tightest rules. Client drift is tolerated, not trusted.
func ParseGame(raw string) Game {
	if g, ok := gameAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return g
	}
	return GameUnknown
}

// LookupGame is the strict variant used for query filters.
func LookupGame(raw string) (Game, bool) {
	g, ok := gameAliases[strings.ToLower(strings.TrimSpace(raw))]
	return g, ok
}

func (g Game) String() string { return string(g) }
