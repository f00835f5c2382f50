package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// Handle identifies a rule installed in an Executor.
type Handle int

// Rule is a weekly recurrence at a wall-clock time in a location.
type Rule struct {
	Weekday domain.Weekday
	Hour    int
	Minute  int
	Loc     *time.Location
}

// Executor runs callbacks on weekly rules.
type Executor interface {
	AddWeekly(rule Rule, fn func()) (Handle, error)
	Remove(h Handle)
}

// Handler performs a trigger's action. firedAt is in the planner's location.
type Handler interface {
	Fire(ctx context.Context, t Trigger, firedAt time.Time)
}

// lockStripes is the number of mutexes user replans are spread over.
const lockStripes = 64

// Planner owns every per-user trigger installed in the executor. Triggers are
// indexed by user so replanning one user never scans the others.
type Planner struct {
	exec    Executor
	handler Handler
	loc     *time.Location
	log     *zap.Logger
	now     func() time.Time

	mu     sync.Mutex // guards byUser
	byUser map[int64]map[Key]Handle
	locks  [lockStripes]sync.Mutex
}

// NewPlanner creates a planner installing triggers into exec and dispatching
// firings to handler.
func NewPlanner(exec Executor, handler Handler, loc *time.Location, log *zap.Logger) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{
		exec:    exec,
		handler: handler,
		loc:     loc,
		log:     log,
		now:     time.Now,
		byUser:  make(map[int64]map[Key]Handle),
	}
}

// userLock returns the mutex serializing replans of chatID. Users share a
// fixed set of stripes, so no per-user state outlives the user's triggers.
func (p *Planner) userLock(chatID int64) *sync.Mutex {
	return &p.locks[uint64(chatID)%lockStripes]
}

// Replan replaces every trigger of chatID with the ones derived from entries.
// All old triggers are removed before any new one is installed; concurrent
// replans of the same user run one after another. It returns the number of
// installed triggers.
func (p *Planner) Replan(ctx context.Context, chatID int64, parityOffset int, entries []domain.ScheduleEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ul := p.userLock(chatID)
	ul.Lock()
	defer ul.Unlock()

	removed := p.removeUser(chatID)

	triggers := BuildTriggers(chatID, parityOffset, entries)
	installed := make(map[Key]Handle, len(triggers))
	for _, t := range triggers {
		if _, dup := installed[t.Key]; dup {
			continue
		}
		h, err := p.exec.AddWeekly(p.ruleFor(t), p.callback(t))
		if err != nil {
			for _, h := range installed {
				p.exec.Remove(h)
			}
			return 0, fmt.Errorf("install %s: %w", t.Key, err)
		}
		installed[t.Key] = h
	}

	p.mu.Lock()
	if len(installed) > 0 {
		p.byUser[chatID] = installed
	}
	p.mu.Unlock()

	p.log.Info("user triggers replanned",
		zap.Int64("chatID", chatID),
		zap.Int("entries", len(entries)),
		zap.Int("removed", removed),
		zap.Int("installed", len(installed)),
	)
	return len(installed), nil
}

// RemoveUser drops every trigger of chatID and returns how many were removed.
func (p *Planner) RemoveUser(chatID int64) int {
	ul := p.userLock(chatID)
	ul.Lock()
	defer ul.Unlock()
	return p.removeUser(chatID)
}

func (p *Planner) removeUser(chatID int64) int {
	p.mu.Lock()
	handles := p.byUser[chatID]
	delete(p.byUser, chatID)
	p.mu.Unlock()

	for _, h := range handles {
		p.exec.Remove(h)
	}
	return len(handles)
}

// Keys returns the installed trigger keys of chatID in a stable order.
func (p *Planner) Keys(chatID int64) []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]Key, 0, len(p.byUser[chatID]))
	for k := range p.byUser[chatID] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (p *Planner) ruleFor(t Trigger) Rule {
	return Rule{Weekday: t.Fire.Weekday, Hour: t.Fire.Hour(), Minute: t.Fire.Minute(), Loc: p.loc}
}

func (p *Planner) callback(t Trigger) func() {
	return func() {
		p.handler.Fire(context.Background(), t, p.now().In(p.loc))
	}
}
