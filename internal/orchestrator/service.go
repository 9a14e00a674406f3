package orchestrator

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
)

// Config tunes the orchestrator's pacing and failure handling. The
// zero value is usable; withDefaults fills in production timings.
// Tests shrink the durations so loops spin fast.
type Config struct {
	// BaseMessageInterval is the per-thinker floor between messages at
	// 1x speed; actual floor is base * speed^1.5.
	BaseMessageInterval time.Duration
	// PreviewInterval throttles thinking previews at 1x speed.
	PreviewInterval time.Duration
	// ThinkingBudget is the extended-thinking token budget per turn.
	ThinkingBudget int

	InactivePoll time.Duration
	PausedPoll   time.Duration

	TypingLeadMin time.Duration
	TypingLeadMax time.Duration

	APIErrorBackoff      time.Duration
	InternalErrorBackoff time.Duration

	FollowUpChance   float64
	InvitationChance float64

	// Seed fixes agent randomness for tests; 0 derives from the clock.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.BaseMessageInterval <= 0 {
		c.BaseMessageInterval = 8 * time.Second
	}
	if c.PreviewInterval <= 0 {
		c.PreviewInterval = 300 * time.Millisecond
	}
	if c.ThinkingBudget <= 0 {
		c.ThinkingBudget = 2000
	}
	if c.InactivePoll <= 0 {
		c.InactivePoll = time.Second
	}
	if c.PausedPoll <= 0 {
		c.PausedPoll = 500 * time.Millisecond
	}
	if c.TypingLeadMin <= 0 {
		c.TypingLeadMin = 500 * time.Millisecond
	}
	if c.TypingLeadMax <= c.TypingLeadMin {
		c.TypingLeadMax = c.TypingLeadMin + time.Second
	}
	if c.APIErrorBackoff <= 0 {
		c.APIErrorBackoff = 10 * time.Second
	}
	if c.InternalErrorBackoff <= 0 {
		c.InternalErrorBackoff = 5 * time.Second
	}
	if c.FollowUpChance <= 0 {
		c.FollowUpChance = 0.15
	}
	if c.InvitationChance <= 0 {
		c.InvitationChance = 0.15
	}
	return c
}

// agentSet tracks the running agents of one conversation.
type agentSet struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Orchestrator owns per-conversation rooms, the running agent sets,
// and the paused set. It is constructed and injected explicitly; there
// are no package-level singletons.
type Orchestrator struct {
	cfg Config
	gen *Generator

	// lifecycle serializes StartAgents/StopAgents so two concurrent
	// starters cannot both pass the stop phase and register overlapping
	// agent sets. Agents themselves never take it, so holding it across
	// wg.Wait is safe.
	lifecycle sync.Mutex

	mu     sync.Mutex
	rooms  map[string]*Room
	agents map[string]*agentSet
	paused map[string]struct{}

	seedCounter int64
}

// New builds an orchestrator over the given LLM provider boundary.
func New(streamer ChatStreamer, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:    cfg,
		gen:    NewGenerator(streamer, cfg.ThinkingBudget, cfg.PreviewInterval),
		rooms:  make(map[string]*Room),
		agents: make(map[string]*agentSet),
		paused: make(map[string]struct{}),
	}
}

// Room returns the conversation's room, creating it lazily.
func (o *Orchestrator) Room(conversationID string) *Room {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[conversationID]
	if !ok {
		room = newRoom(conversationID)
		o.rooms[conversationID] = room
	}
	return room
}

// Connect registers a client connection, announces the join, and
// replays the pause flag to the newcomer so their UI starts correct.
func (o *Orchestrator) Connect(conversationID string, c Conn) {
	room := o.Room(conversationID)
	room.AddConn(c)
	room.Broadcast(UserJoinedEvent{ConversationID: conversationID})
	if o.IsPaused(conversationID) {
		// Best effort; a dead conn gets evicted on first broadcast.
		_ = c.Send(PausedEvent{ConversationID: conversationID})
	}
}

// Disconnect removes a client connection and announces the departure.
func (o *Orchestrator) Disconnect(conversationID string, c Conn) {
	room := o.Room(conversationID)
	room.RemoveConn(c)
	room.Broadcast(UserLeftEvent{ConversationID: conversationID})
}

// StartAgents spawns one agent per thinker for the conversation. Any
// agents already running for it are stopped first, so a
// conversation+thinker pair never runs twice concurrently even when
// two clients connect at once.
func (o *Orchestrator) StartAgents(conversationID string, thinkers []thinker.Thinker, topic, userName string, history History) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.stopAgentsLocked(conversationID)

	if o.gen.streamer == nil {
		log.Printf("[orchestrator] no chat model configured, agents not started for conversation %s", conversationID)
		return
	}

	room := o.Room(conversationID)
	ctx, cancel := context.WithCancel(context.Background())
	set := &agentSet{cancel: cancel}

	// All Adds happen before the set is visible to any stopper, so a
	// later StopAgents can never Wait concurrently with Add.
	set.wg.Add(len(thinkers))

	o.mu.Lock()
	o.agents[conversationID] = set
	baseSeed := o.cfg.Seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}
	baseSeed += o.seedCounter
	o.seedCounter += int64(len(thinkers)) + 1
	o.mu.Unlock()

	for i, t := range thinkers {
		runner := &agentRunner{
			orc:            o,
			room:           room,
			history:        history,
			gen:            o.gen,
			rng:            rand.New(rand.NewSource(baseSeed + int64(i))),
			cfg:            o.cfg,
			conversationID: conversationID,
			thinker:        t,
			topic:          topic,
			userName:       userName,
		}
		go func() {
			defer set.wg.Done()
			runner.run(ctx)
		}()
	}

	log.Printf("[orchestrator] started %d agents for conversation %s", len(thinkers), conversationID)
}

// StopAgents cancels every agent for the conversation and waits for
// each to acknowledge before returning, so no agent keeps running (or
// touches persistence or transport) after this call. The pause flag is
// deliberately left intact; it must survive reconnects.
func (o *Orchestrator) StopAgents(conversationID string) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	o.stopAgentsLocked(conversationID)
}

// stopAgentsLocked does the actual teardown; callers hold o.lifecycle.
func (o *Orchestrator) stopAgentsLocked(conversationID string) {
	o.mu.Lock()
	set, ok := o.agents[conversationID]
	if ok {
		delete(o.agents, conversationID)
	}
	o.mu.Unlock()

	if ok {
		set.cancel()
		set.wg.Wait()
		log.Printf("[orchestrator] stopped agents for conversation %s", conversationID)
	}

	// With agents gone and no clients connected, the room holds no
	// state worth keeping; drop it so idle conversations don't
	// accumulate for the process lifetime. The pause flag is tracked
	// separately and survives.
	o.mu.Lock()
	if room, exists := o.rooms[conversationID]; exists && !room.IsActive() {
		delete(o.rooms, conversationID)
	}
	o.mu.Unlock()
}

// StopAll stops every conversation's agents; used at shutdown.
func (o *Orchestrator) StopAll() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.mu.Lock()
	ids := make([]string, 0, len(o.agents))
	for id := range o.agents {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.stopAgentsLocked(id)
	}
}

// HasAgents reports whether agents are currently running for the
// conversation.
func (o *Orchestrator) HasAgents(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.agents[conversationID]
	return ok
}

// Pause flags the conversation and notifies every client. Agents stop
// generating, persisting, and broadcasting until Resume.
func (o *Orchestrator) Pause(conversationID string) {
	o.mu.Lock()
	o.paused[conversationID] = struct{}{}
	o.mu.Unlock()
	o.Room(conversationID).Broadcast(PausedEvent{ConversationID: conversationID})
}

// Resume clears the pause flag and notifies every client.
func (o *Orchestrator) Resume(conversationID string) {
	o.mu.Lock()
	delete(o.paused, conversationID)
	o.mu.Unlock()
	o.Room(conversationID).Broadcast(ResumedEvent{ConversationID: conversationID})
}

// IsPaused reports the conversation's pause flag.
func (o *Orchestrator) IsPaused(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.paused[conversationID]
	return ok
}

// SetSpeed clamps and applies the conversation speed multiplier.
func (o *Orchestrator) SetSpeed(conversationID string, multiplier float64) float64 {
	return o.Room(conversationID).SetSpeed(multiplier)
}

// BroadcastUserMessage fans out a user message notification. Storage
// is the API layer's job; this is real-time delivery only.
func (o *Orchestrator) BroadcastUserMessage(conversationID, content string) {
	o.Room(conversationID).Broadcast(MessageEvent{
		ConversationID: conversationID,
		SenderType:     string(conversation.SenderUser),
		Content:        content,
		Timestamp:      time.Now().UTC(),
	})
}
