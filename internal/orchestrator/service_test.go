package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// seqLog records the interleaving of persistence and delivery so tests
// can assert save-before-broadcast ordering.
type seqLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *seqLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *seqLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// fakeHistory is an in-memory History that can be primed to fail saves.
type fakeHistory struct {
	mu       sync.Mutex
	messages []conversation.Message
	saveErr  error
	fetches  int
	seq      *seqLog
}

func (h *fakeHistory) Messages(_ context.Context, _ string) ([]conversation.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetches++
	return append([]conversation.Message(nil), h.messages...), nil
}

func (h *fakeHistory) SaveThinkerMessage(_ context.Context, conversationID, thinkerName, content string, cost float64) (conversation.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saveErr != nil {
		return conversation.Message{}, h.saveErr
	}

	msgCost := cost
	msg := conversation.Message{
		ID:             fmt.Sprintf("msg-%d", len(h.messages)),
		ConversationID: conversationID,
		SenderType:     conversation.SenderThinker,
		SenderName:     thinkerName,
		Content:        content,
		Cost:           &msgCost,
		CreatedAt:      time.Now().UTC(),
	}
	h.messages = append(h.messages, msg)
	if h.seq != nil {
		h.seq.add("save")
	}
	return msg, nil
}

func (h *fakeHistory) addUser(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, conversation.Message{
		SenderType: conversation.SenderUser,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
}

func (h *fakeHistory) Fetches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetches
}

func (h *fakeHistory) SavedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// seqConn mirrors recordingConn but also marks message deliveries in
// the shared sequence log.
type seqConn struct {
	recordingConn
	seq *seqLog
}

func (c *seqConn) Send(event Event) error {
	if c.seq != nil && event.Kind() == KindMessage {
		c.seq.add("broadcast")
	}
	return c.recordingConn.Send(event)
}

func fastConfig() Config {
	return Config{
		BaseMessageInterval:  time.Millisecond,
		PreviewInterval:      time.Millisecond,
		ThinkingBudget:       100,
		InactivePoll:         5 * time.Millisecond,
		PausedPoll:           5 * time.Millisecond,
		TypingLeadMin:        time.Millisecond,
		TypingLeadMax:        2 * time.Millisecond,
		APIErrorBackoff:      10 * time.Millisecond,
		InternalErrorBackoff: 10 * time.Millisecond,
		FollowUpChance:       0.01,
		InvitationChance:     0.01,
		Seed:                 12345,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestAgentRespondsAndSavesBeforeBroadcast(t *testing.T) {
	seq := &seqLog{}
	history := &fakeHistory{seq: seq}
	history.addUser("Socrates, what do you make of modern machines?")
	history.addUser("Socrates, I would really like your view.")

	streamer := &scriptedStreamer{
		deltas: []StreamDelta{{Text: "A fine question indeed."}},
		usage:  TokenUsage{InputTokens: 100, OutputTokens: 20},
	}

	orc := New(streamer, fastConfig())
	defer orc.StopAll()

	conn := &seqConn{seq: seq}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 0.5)

	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "machines", "Sam", history)

	waitFor(t, 15*time.Second, func() bool {
		return conn.CountKind(KindMessage) > 0
	}, "a thinker message")

	entries := seq.snapshot()
	if len(entries) < 2 || entries[0] != "save" || entries[1] != "broadcast" {
		t.Fatalf("expected save before broadcast, got %v", entries)
	}

	if conn.CountKind(KindThinkerTyping) == 0 {
		t.Fatal("expected a typing indicator before the message")
	}

	// Every delivered message must already be persisted.
	if history.SavedCount() == 0 {
		t.Fatal("message broadcast without persistence")
	}
}

func TestPausedConversationGeneratesNothing(t *testing.T) {
	history := &fakeHistory{}
	history.addUser("Socrates, please respond.")

	streamer := &scriptedStreamer{
		deltas: []StreamDelta{{Text: "Should never appear."}},
	}

	orc := New(streamer, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.Pause("conv-1")

	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)
	time.Sleep(150 * time.Millisecond)

	if n := history.Fetches(); n != 0 {
		t.Fatalf("paused agents must not read the transcript, got %d fetches", n)
	}
	if n := streamer.Calls(); n != 0 {
		t.Fatalf("paused agents must not call the model, got %d calls", n)
	}
	if n := conn.CountKind(KindMessage); n != 0 {
		t.Fatalf("paused agents must not send messages, got %d", n)
	}
}

func TestPauseSurvivesAgentRestart(t *testing.T) {
	orc := New(&scriptedStreamer{}, fastConfig())
	defer orc.StopAll()

	orc.Pause("conv-1")
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", &fakeHistory{})
	orc.StopAgents("conv-1")

	if !orc.IsPaused("conv-1") {
		t.Fatal("pause flag must survive agent teardown")
	}

	orc.Resume("conv-1")
	if orc.IsPaused("conv-1") {
		t.Fatal("resume should clear the flag")
	}
}

func TestSpendLimitHaltsConversation(t *testing.T) {
	history := &fakeHistory{saveErr: ErrSpendLimitExceeded}
	history.addUser("Socrates, one more thought?")
	history.addUser("Socrates, please go on.")

	streamer := &scriptedStreamer{
		deltas: []StreamDelta{{Text: "This reply will be rejected."}},
		usage:  TokenUsage{OutputTokens: 1000},
	}

	orc := New(streamer, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 0.5)
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)

	waitFor(t, 15*time.Second, func() bool {
		return orc.IsPaused("conv-1")
	}, "spend-limit pause")

	waitFor(t, time.Second, func() bool {
		return conn.CountKind(KindError) > 0
	}, "spend-limit error notice")

	if n := conn.CountKind(KindMessage); n != 0 {
		t.Fatalf("rejected saves must not be broadcast, got %d messages", n)
	}
}

func TestStopAgentsCeasesAllWork(t *testing.T) {
	history := &fakeHistory{}
	history.addUser("Socrates, say something.")
	history.addUser("Socrates, anything at all.")

	streamer := &scriptedStreamer{
		deltas: []StreamDelta{{Text: "Very well."}},
	}

	orc := New(streamer, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 0.5)
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)

	waitFor(t, 15*time.Second, func() bool {
		return history.SavedCount() > 2
	}, "a first response")

	orc.StopAgents("conv-1")
	if orc.HasAgents("conv-1") {
		t.Fatal("agent set should be gone after StopAgents")
	}

	saved := history.SavedCount()
	time.Sleep(200 * time.Millisecond)
	if history.SavedCount() != saved {
		t.Fatal("agents kept persisting after StopAgents returned")
	}
}

func TestStartAgentsWithoutModelIsNoop(t *testing.T) {
	orc := New(nil, fastConfig())
	defer orc.StopAll()

	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", &fakeHistory{})
	if orc.HasAgents("conv-1") {
		t.Fatal("agents must not start without a chat model")
	}
}

// hookStreamer mirrors scriptedStreamer but fires a callback as each
// delta is consumed, letting tests flip state mid-stream.
type hookStreamer struct {
	deltas  []StreamDelta
	onDelta func(pos int)
}

func (s *hookStreamer) StreamChat(_ context.Context, _ string, _, _ int) (ChatStream, error) {
	return &hookStream{
		scriptedStream: scriptedStream{deltas: append([]StreamDelta(nil), s.deltas...)},
		onDelta:        s.onDelta,
	}, nil
}

type hookStream struct {
	scriptedStream
	onDelta func(pos int)
}

func (s *hookStream) Recv() (StreamDelta, error) {
	pos := s.pos
	delta, err := s.scriptedStream.Recv()
	if err == nil && s.onDelta != nil {
		s.onDelta(pos)
	}
	return delta, err
}

// blockingStreamer holds every stream open until its context dies.
type blockingStreamer struct{}

func (blockingStreamer) StreamChat(ctx context.Context, _ string, _, _ int) (ChatStream, error) {
	return &blockingStream{ctx: ctx}, nil
}

type blockingStream struct{ ctx context.Context }

func (s *blockingStream) Recv() (StreamDelta, error) {
	<-s.ctx.Done()
	return StreamDelta{}, s.ctx.Err()
}

func (s *blockingStream) Usage() TokenUsage { return TokenUsage{} }
func (s *blockingStream) Close()            {}

func TestConcurrentStartAgentsNeverOverlap(t *testing.T) {
	history := &fakeHistory{}
	orc := New(&scriptedStreamer{}, fastConfig())
	defer orc.StopAll()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)
			}
		}()
	}
	wg.Wait()

	if !orc.HasAgents("conv-1") {
		t.Fatal("an agent set should remain after the final start")
	}
	orc.StopAgents("conv-1")
	if orc.HasAgents("conv-1") {
		t.Fatal("agent set should be gone after StopAgents")
	}
	// goleak in TestMain fails the package if any overwritten set's
	// agents were orphaned by the churn above.
}

func TestMidStreamPauseDropsTheTurn(t *testing.T) {
	history := &fakeHistory{}
	history.addUser("Socrates, what say you?")
	history.addUser("Socrates, we are waiting.")

	var orc *Orchestrator
	streamer := &hookStreamer{
		deltas: []StreamDelta{
			{Thinking: "An opening line of reasoning long enough to broadcast as a preview. "},
			{Thinking: "A second line of reasoning that must never reach any client at all. "},
			{Text: "A reply that must never be persisted."},
		},
		onDelta: func(pos int) {
			if pos == 1 {
				orc.Pause("conv-1")
			}
		},
	}
	orc = New(streamer, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 0.5)
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)

	waitFor(t, 15*time.Second, func() bool {
		return conn.CountKind(KindPaused) > 0
	}, "the mid-stream pause")

	// Let the stream drain and the turn conclude.
	time.Sleep(200 * time.Millisecond)

	if n := conn.CountKind(KindMessage); n != 0 {
		t.Fatalf("a turn overtaken by pause must not be delivered, got %d messages", n)
	}
	if got := history.SavedCount(); got != 2 {
		t.Fatalf("a turn overtaken by pause must not be persisted, transcript has %d entries", got)
	}

	events := conn.Events()
	pausedAt := -1
	for i, e := range events {
		if e.Kind() == KindPaused {
			pausedAt = i
			break
		}
	}
	for _, e := range events[pausedAt+1:] {
		if e.Kind() == KindThinkerThinking {
			t.Fatal("thinking preview broadcast after the pause flag flipped")
		}
	}
}

func TestStopDuringGenerationClearsTyping(t *testing.T) {
	history := &fakeHistory{}
	history.addUser("Socrates, please.")
	history.addUser("Socrates, go ahead.")

	orc := New(blockingStreamer{}, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 0.5)
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", history)

	waitFor(t, 15*time.Second, func() bool {
		return conn.CountKind(KindThinkerTyping) > 0
	}, "a typing indicator")

	orc.StopAgents("conv-1")

	if names := orc.Room("conv-1").TypingThinkers(); len(names) != 0 {
		t.Fatalf("typing set left stale after stop: %v", names)
	}
	if n := conn.CountKind(KindThinkerStoppedTyping); n != 0 {
		t.Fatalf("nothing may broadcast after stop, got %d stopped-typing events", n)
	}
}

func TestStopAgentsDropsIdleRoom(t *testing.T) {
	orc := New(&scriptedStreamer{}, fastConfig())
	defer orc.StopAll()

	if got := orc.SetSpeed("conv-1", 3.0); got != 3.0 {
		t.Fatalf("SetSpeed: got %v", got)
	}
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", &fakeHistory{})
	orc.StopAgents("conv-1")

	// The idle room was discarded; a fresh one starts at default speed.
	if got := orc.Room("conv-1").Speed(); got != 1.0 {
		t.Fatalf("expected a fresh room after stop, speed %v", got)
	}
}

func TestStopAgentsKeepsActiveRoom(t *testing.T) {
	orc := New(&scriptedStreamer{}, fastConfig())
	defer orc.StopAll()

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)
	orc.SetSpeed("conv-1", 3.0)
	orc.StartAgents("conv-1", []thinker.Thinker{testThinker()}, "topic", "Sam", &fakeHistory{})
	orc.StopAgents("conv-1")

	if got := orc.Room("conv-1").Speed(); got != 3.0 {
		t.Fatalf("room with a live connection must survive stop, speed %v", got)
	}
}

func TestConnectReplaysPauseState(t *testing.T) {
	orc := New(&scriptedStreamer{}, fastConfig())
	defer orc.StopAll()

	orc.Pause("conv-1")

	conn := &recordingConn{}
	orc.Connect("conv-1", conn)

	if n := conn.CountKind(KindPaused); n != 1 {
		t.Fatalf("newcomer should learn the conversation is paused, got %d paused events", n)
	}
}
