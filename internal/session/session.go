package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-live/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-live/internal/entity"
)

// Sink receives state snapshots for one bound connection. Send must not
// block: it reports false when the snapshot could not be queued, which
// the session treats as a dead connection.
type Sink interface {
	Send(snapshot *Snapshot) bool
}

// Snapshot is the full externally visible state of a session, rebuilt
// after every accepted mutation and pushed to every bound connection.
type Snapshot struct {
	ID      string         `json:"id"`
	Board   [9]string      `json:"board"`
	Turn    string         `json:"player_turn,omitempty"`
	Winner  string         `json:"winner,omitempty"`
	Status  string         `json:"status"`
	Scores  map[string]int `json:"scores"`
	Players []PlayerState  `json:"players"`
}

type PlayerState struct {
	Name      string `json:"name"`
	Mark      string `json:"mark"`
	Connected bool   `json:"connected"`
}

// Session is one match between up to two players. All mutation happens
// under its own mutex so unrelated sessions never contend; the session
// outlives any of its connections by design.
type Session struct {
	ID string

	logger *slog.Logger

	mu           sync.Mutex
	game         *entity.Game
	slots        map[string]*entity.PlayerSlot
	sinks        map[string]Sink
	scores       map[string]int
	lastActivity time.Time
}

func NewSession(logger *slog.Logger, id string) *Session {
	return &Session{
		ID:     id,
		logger: logger.With("component", "session", "sessionID", id),

		game:         entity.NewGame(),
		slots:        make(map[string]*entity.PlayerSlot),
		sinks:        make(map[string]Sink),
		scores:       map[string]int{entity.PlayerX: 0, entity.PlayerO: 0},
		lastActivity: time.Now(),
	}
}

// Bind - attaches a connection to a seat. A name matching a seat with no
// live connection is a reconnection and gets its old mark back; otherwise
// the first joiner seats as X, the second as O. Anything else is rejected
// with ErrSessionFull.
func (that *Session) Bind(name string, sink Sink) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "Bind", "name", name)

	if slot := that.findSlotByName(name); slot != nil {
		if _, connected := that.sinks[slot.Mark]; connected {
			return "", apperror.ErrSessionFull
		}

		that.sinks[slot.Mark] = sink
		that.touch()
		that.publish()

		log.Info("player reconnected", "mark", slot.Mark)

		return slot.Mark, nil
	}

	mark, free := that.freeMark()
	if !free {
		return "", apperror.ErrSessionFull
	}

	that.slots[mark] = &entity.PlayerSlot{Name: name, Mark: mark}
	that.sinks[mark] = sink

	// the second seat starts the match
	if len(that.slots) == 2 && that.game.IsWaiting() {
		that.game.Status = entity.StatusOngoing
	}

	that.touch()
	that.publish()

	log.Info("player joined", "mark", mark)

	return mark, nil
}

// Unbind - detaches a connection from its seat on disconnect. The seat
// keeps its name so the player can reclaim it later. The sink identity
// check keeps a stale disconnect from clobbering a newer reconnect.
func (that *Session) Unbind(mark string, sink Sink) {
	that.mu.Lock()
	defer that.mu.Unlock()

	current, ok := that.sinks[mark]
	if !ok || current != sink {
		return
	}

	delete(that.sinks, mark)
	that.touch()
	that.publish()

	that.logger.Info("player disconnected", "method", "Unbind", "mark", mark)
}

// MakeTurn - applies one validated move. Rejections are returned to the
// caller and never mutate state; an accepted move updates scores on a win
// and broadcasts the new state.
func (that *Session) MakeTurn(mark string, cell int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.MakeTurn(mark, cell); err != nil {
		return err
	}

	if winner := that.game.Winner; winner == entity.PlayerX || winner == entity.PlayerO {
		that.scores[winner]++
	}

	that.touch()
	that.publish()

	return nil
}

// Reset - starts a rematch: empty board, X to open, scores preserved.
func (that *Session) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.game.Reset(len(that.slots) == 2)
	that.touch()
	that.publish()

	that.logger.Info("game reset", "method", "Reset", "status", that.game.Status)
}

// Snapshot - returns the current externally visible state.
func (that *Session) Snapshot() *Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

// Expired - reports whether the session has no live connections and has
// been idle longer than ttl. A session with any bound connection never
// expires regardless of age.
func (that *Session) Expired(now time.Time, ttl time.Duration) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.sinks) > 0 {
		return false
	}

	return now.Sub(that.lastActivity) > ttl
}

// LastActivity - returns the time of the last accepted mutation.
func (that *Session) LastActivity() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.lastActivity
}

func (that *Session) findSlotByName(name string) *entity.PlayerSlot {
	for _, slot := range that.slots {
		if slot.Name == name {
			return slot
		}
	}
	return nil
}

func (that *Session) freeMark() (string, bool) {
	if _, ok := that.slots[entity.PlayerX]; !ok {
		return entity.PlayerX, true
	}
	if _, ok := that.slots[entity.PlayerO]; !ok {
		return entity.PlayerO, true
	}
	return "", false
}

func (that *Session) touch() {
	that.lastActivity = time.Now()
}

// publish - fans the current snapshot out to every bound connection.
// Runs inside the session critical section, which gives every recipient
// the same snapshot order. A sink that cannot keep up is dropped on the
// spot (disconnect-slow-consumer policy) and the remaining sinks get a
// follow-up snapshot with the connected flag cleared.
func (that *Session) publish() {
	for {
		snapshot := that.snapshotLocked()

		var dropped []string
		for mark, sink := range that.sinks {
			if !sink.Send(snapshot) {
				dropped = append(dropped, mark)
			}
		}

		if len(dropped) == 0 {
			return
		}

		for _, mark := range dropped {
			delete(that.sinks, mark)
			that.logger.Warn("dropping slow or dead connection", "method", "publish", "mark", mark)
		}
	}
}

func (that *Session) snapshotLocked() *Snapshot {
	snapshot := &Snapshot{
		ID:     that.ID,
		Board:  that.game.Board,
		Turn:   that.game.Turn,
		Winner: that.game.Winner,
		Status: that.game.Status,
		Scores: map[string]int{
			entity.PlayerX: that.scores[entity.PlayerX],
			entity.PlayerO: that.scores[entity.PlayerO],
		},
		Players: make([]PlayerState, 0, len(that.slots)),
	}

	for _, mark := range []string{entity.PlayerX, entity.PlayerO} {
		slot, ok := that.slots[mark]
		if !ok {
			continue
		}

		_, connected := that.sinks[mark]
		snapshot.Players = append(snapshot.Players, PlayerState{
			Name:      slot.Name,
			Mark:      slot.Mark,
			Connected: connected,
		})
	}

	return snapshot
}
