package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned for unknown ids and for conversations owned by another user.
var ErrNotFound = errors.New("conversation not found")

// Reply is what the user sees after sending a message.
type Reply struct {
	Text     string
	Finished bool
}

// Engine is the in-memory registry of live conversations.
type Engine struct {
	mu    sync.Mutex
	next  int64
	convs map[int64]Conversation
	clock clockwork.Clock
	ttl   time.Duration
}

// NewEngine returns an empty registry. A zero ttl keeps conversations forever.
func NewEngine(clock clockwork.Clock, ttl time.Duration) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{convs: make(map[int64]Conversation), clock: clock, ttl: ttl}
}

// Create registers a conversation at the first stage and returns its id.
func (e *Engine) Create(userID int64, username string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	e.convs[id] = Conversation{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Stage:     StageFirstIncome,
		UpdatedAt: e.clock.Now(),
	}
	return id
}

// Get returns a copy of the conversation.
func (e *Engine) Get(id int64) (Conversation, bool) {
	if id < 0 {
		return Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.convs[id]
	return c, ok
}

// Respond feeds message to the conversation: validate and store the answer,
// then either ask the next question or, after the last one, produce the report.
// The whole step runs under the registry lock.
func (e *Engine) Respond(id, userID int64, message string) (Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.convs[id]
	if !ok || c.UserID != userID {
		return Reply{}, ErrNotFound
	}

	c, res := HandleMessage(message, c)
	if !res.MoveOn {
		return Reply{Text: res.Error}, nil
	}

	var reply Reply
	if next, question, advanced := MoveOn(c); advanced {
		c = next
		reply = Reply{Text: question}
	} else {
		reply = Reply{Text: Finish(c), Finished: true}
	}
	c.UpdatedAt = e.clock.Now()
	e.convs[id] = c
	return reply, nil
}

// Evict drops conversations idle for longer than the ttl and returns how many went.
func (e *Engine) Evict() int64 {
	if e.ttl <= 0 {
		return 0
	}
	cutoff := e.clock.Now().Add(-e.ttl)
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int64
	for id, c := range e.convs {
		if c.UpdatedAt.Before(cutoff) {
			delete(e.convs, id)
			n++
		}
	}
	return n
}

// Len is the number of live conversations.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.convs)
}
