package game

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateGame is returned when a command is registered twice.
var ErrDuplicateGame = errors.New("game command already registered")

// Registry holds the playable games keyed by chat command.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Register adds g under its command.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	cmd := g.Command()
	if cmd == "" {
		return fmt.Errorf("game %q has no command", g.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[cmd]; ok {
		return fmt.Errorf("%w: /%s", ErrDuplicateGame, cmd)
	}
	r.games[cmd] = g
	return nil
}

// List returns the games ordered by command, for /games.
func (r *Registry) List() []Game {
	r.mu.RLock()
	games := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()

	sort.Slice(games, func(i, j int) bool { return games[i].Command() < games[j].Command() })
	return games
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
