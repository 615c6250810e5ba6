package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cardtable/leastcount/pkg/game"
	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/server/ingress"
	"github.com/cardtable/leastcount/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records everything the table sends it.
type fakeConn struct {
	session utils.Session

	mutex        sync.Mutex
	id           match.PlayerID
	lines        [][]byte
	started      bool
	disconnected bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{session: utils.NewSession(context.Background())}
}

func (f *fakeConn) Session() *utils.Session { return &f.session }

func (f *fakeConn) ID() match.PlayerID {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.id
}

func (f *fakeConn) SetID(pid match.PlayerID) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.id = pid
}

func (f *fakeConn) Addr() string { return "fake" }

func (f *fakeConn) Send(line []byte) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeConn) Start() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.started = true
}

func (f *fakeConn) Disconnect() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.disconnected = true
	f.session.Cancel()
}

// actions decodes the action of every line sent so far.
func (f *fakeConn) actions() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]string, 0, len(f.lines))
	for _, line := range f.lines {
		if msg, err := protocol.Decode(line); err == nil {
			out = append(out, msg.Action)
		}
	}
	return out
}

// last returns the most recent line carrying the given action.
func (f *fakeConn) last(action string) (protocol.Message, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for i := len(f.lines) - 1; i >= 0; i-- {
		if msg, err := protocol.Decode(f.lines[i]); err == nil && msg.Action == action {
			return msg, true
		}
	}
	return protocol.Message{}, false
}

func (f *fakeConn) sent() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.lines)
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s := New(context.Background(), Config{
		HostName:   "Host",
		HostSeated: true,
		Rules:      match.DefaultRules(),
	})
	t.Cleanup(s.Cancel)
	return s
}

func event(t *testing.T, action string, payload any) protocol.Message {
	t.Helper()
	raw := json.RawMessage(`{}`)
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	return protocol.Message{Action: action, Raw: raw}
}

func TestJoinAssignsIDs(t *testing.T) {
	s := testServer(t)

	c1 := newFakeConn()
	c2 := newFakeConn()
	s.handleJoin(c1)
	s.handleJoin(c2)

	assert.Equal(t, match.PlayerID(2), c1.ID())
	assert.Equal(t, match.PlayerID(3), c2.ID())
	assert.True(t, c1.started)

	require.GreaterOrEqual(t, len(c1.actions()), 2)
	assert.Equal(t, protocol.ActionWelcome, c1.actions()[0])

	msg, ok := c1.last(protocol.ActionLobby)
	require.True(t, ok)
	var lobby protocol.Lobby
	require.NoError(t, json.Unmarshal(msg.Raw, &lobby))
	assert.Equal(t, []match.PlayerID{1, 2, 3}, lobby.PlayerOrder)
	assert.Equal(t, "Player 2", s.match.Players[2].Name)
}

func TestHelloRenames(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	s.handleJoin(c1)

	s.handleEvent(2, event(t, protocol.ActionHello, protocol.Hello{Name: "Priya"}))
	assert.Equal(t, "Priya", s.match.Players[2].Name)

	msg, ok := c1.last(protocol.ActionLobby)
	require.True(t, ok)
	var lobby protocol.Lobby
	require.NoError(t, json.Unmarshal(msg.Raw, &lobby))
	assert.Equal(t, "Priya", lobby.Players[1].Name)
}

func TestStartMatchSequence(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	c2 := newFakeConn()
	s.handleJoin(c1)
	s.handleJoin(c2)

	require.NoError(t, s.handleCommand(command{kind: cmdStartMatch, response: make(chan error, 1)}))

	// Rules notice, private hand, then the opening snapshot.
	actions := c1.actions()
	var afterJoin []string
	for i, a := range actions {
		if a == protocol.ActionStart {
			afterJoin = actions[i:]
			break
		}
	}
	require.Equal(t, []string{protocol.ActionStart, protocol.ActionHand, protocol.ActionUpdate}, afterJoin)

	msg, ok := c1.last(protocol.ActionHand)
	require.True(t, ok)
	var hand protocol.Hand
	require.NoError(t, json.Unmarshal(msg.Raw, &hand))
	assert.Len(t, hand.Hand, 7)

	msg, ok = c2.last(protocol.ActionUpdate)
	require.True(t, ok)
	var update protocol.Update
	require.NoError(t, json.Unmarshal(msg.Raw, &update))
	assert.Equal(t, match.PlayerID(2), update.State.Turn)
	assert.Len(t, update.State.HandCounts, 3)
}

func TestPlayFlow(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	c2 := newFakeConn()
	s.handleJoin(c1)
	s.handleJoin(c2)
	require.NoError(t, s.handleCommand(command{kind: cmdStartMatch, response: make(chan error, 1)}))

	r := s.match.Round
	require.Equal(t, match.PlayerID(2), r.CurrentTurn())
	card := r.Hands[2][0]

	before := c1.sent()
	s.handleEvent(2, event(t, protocol.ActionDiscard, protocol.Discard{Card: card}))

	assert.NotContains(t, r.Hands[2], card)
	// The actor gets a fresh hand and everyone gets the snapshot.
	assert.Greater(t, c1.sent(), before)
	_, ok := c1.last(protocol.ActionHand)
	assert.True(t, ok)
	msg, ok := c2.last(protocol.ActionUpdate)
	require.True(t, ok)
	var update protocol.Update
	require.NoError(t, json.Unmarshal(msg.Raw, &update))

	if r.CurrentTurn() == 2 && r.Phase(2) == match.PhaseDraw {
		s.handleEvent(2, event(t, protocol.ActionDrawDeck, nil))
		assert.Equal(t, match.PlayerID(3), r.CurrentTurn())
	}
}

func TestIllegalActionIsSilent(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	c2 := newFakeConn()
	s.handleJoin(c1)
	s.handleJoin(c2)

	// No round running: every play action is a no-op.
	before1, before2 := c1.sent(), c2.sent()
	s.handleEvent(2, event(t, protocol.ActionDiscard, protocol.Discard{Card: "7H"}))
	s.handleEvent(2, event(t, protocol.ActionDrawDeck, nil))
	s.handleEvent(2, event(t, protocol.ActionShow, nil))
	assert.Equal(t, before1, c1.sent())
	assert.Equal(t, before2, c2.sent())

	require.NoError(t, s.handleCommand(command{kind: cmdStartMatch, response: make(chan error, 1)}))

	// Out of turn: state and traffic stay untouched.
	r := s.match.Round
	require.Equal(t, match.PlayerID(2), r.CurrentTurn())
	hand3 := append([]game.Card(nil), r.Hands[3]...)
	before2 = c2.sent()
	s.handleEvent(3, event(t, protocol.ActionDiscard, protocol.Discard{Card: hand3[0]}))
	assert.Equal(t, hand3, r.Hands[3])
	assert.Equal(t, before2, c2.sent())

	// Unknown actions are dropped too.
	s.handleEvent(2, event(t, "juggle", nil))
	assert.Equal(t, match.PlayerID(2), r.CurrentTurn())
}

func TestExitInLobby(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	c2 := newFakeConn()
	s.handleJoin(c1)
	s.handleJoin(c2)

	s.handleEvent(2, event(t, protocol.ActionExit, nil))

	assert.True(t, c1.disconnected)
	assert.NotContains(t, s.match.Players, match.PlayerID(2))
	assert.Equal(t, 1, s.clients.Count())

	msg, ok := c2.last(protocol.ActionLobby)
	require.True(t, ok)
	var lobby protocol.Lobby
	require.NoError(t, json.Unmarshal(msg.Raw, &lobby))
	assert.Equal(t, []match.PlayerID{1, 3}, lobby.PlayerOrder)
}

func TestDisconnectMidMatchEndsTwoPlayerTable(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	s.handleJoin(c1)
	require.NoError(t, s.handleCommand(command{kind: cmdStartMatch, response: make(chan error, 1)}))

	s.handleEvent(2, event(t, protocol.ActionDisconnect, nil))

	assert.True(t, s.match.Over)
	assert.Equal(t, match.HostID, s.match.Winner)
	assert.Equal(t, match.EndPlayerExit, s.match.EndReason)
}

func TestCloseMatch(t *testing.T) {
	s := testServer(t)
	c1 := newFakeConn()
	s.handleJoin(c1)
	require.NoError(t, s.handleCommand(command{kind: cmdStartMatch, response: make(chan error, 1)}))

	require.NoError(t, s.handleCommand(command{kind: cmdCloseMatch, response: make(chan error, 1)}))

	assert.True(t, c1.disconnected)
	assert.False(t, s.match.Started)
	assert.Equal(t, match.EndHostClosed, s.match.EndReason)

	_, ok := c1.last(protocol.ActionMatchEnd)
	assert.True(t, ok)
}

func TestPollDispatches(t *testing.T) {
	s := testServer(t)
	go s.Poll(s.Ctx())

	c1 := newFakeConn()
	s.Joins() <- c1

	require.Eventually(t, func() bool {
		_, ok := c1.last(protocol.ActionWelcome)
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, match.PlayerID(2), c1.ID())

	s.Events() <- ingress.Event{
		Player:  2,
		Message: event(t, protocol.ActionHello, protocol.Hello{Name: "Omar"}),
	}
	require.Eventually(t, func() bool {
		msg, ok := c1.last(protocol.ActionLobby)
		if !ok {
			return false
		}
		var lobby protocol.Lobby
		if json.Unmarshal(msg.Raw, &lobby) != nil {
			return false
		}
		for _, p := range lobby.Players {
			if p.Name == "Omar" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Host commands serialize through the same loop.
	require.NoError(t, s.StartMatch())
	require.Error(t, s.StartMatch())
}
