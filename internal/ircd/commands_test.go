package ircd

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise dispatch() and its handlers purely in memory: no
// socket, no epoll, no Setup/Run. Everything commands.go touches (output
// queues, the nick/channel registries) is plain Go state, so a Server built
// with New() and Clients added directly to its maps is enough to drive the
// registration state machine and channel semantics end to end.

func newTestServer(password string) *Server {
	s := New(6667, password)
	s.log = logrus.New()
	s.log.SetOutput(io.Discard)
	return s
}

func connectClient(s *Server, fd int) *Client {
	c := newClient(fd)
	s.clients[fd] = c
	return c
}

func registerClient(t *testing.T, s *Server, fd int, nick string) *Client {
	t.Helper()
	c := connectClient(s, fd)
	s.dispatch(c, "PASS hunter2")
	s.dispatch(c, "NICK "+nick)
	s.dispatch(c, "USER "+nick+" 0 * :"+nick+" Realname")
	require.Equal(t, regRegistered, c.state)
	c.outputQueue = nil // discard the welcome burst so later assertions are clean
	return c
}

func linesOf(c *Client) []string {
	out := make([]string, len(c.outputQueue))
	for i, b := range c.outputQueue {
		out[i] = strings.TrimSuffix(string(b), "\r\n")
	}
	return out
}

// S1: PASS/NICK/USER in order produces the numeric welcome burst in order.
func TestRegistrationHappyPath(t *testing.T) {
	s := newTestServer("hunter2")
	c := connectClient(s, 1)

	s.dispatch(c, "PASS hunter2")
	assert.Equal(t, regPassOK, c.state)

	s.dispatch(c, "NICK alice")
	assert.True(t, c.gotNick)
	assert.Equal(t, regPassOK, c.state, "registration not complete until USER too")

	s.dispatch(c, "USER alice 0 * :Alice Liddell")

	require.Equal(t, regRegistered, c.state)
	lines := linesOf(c)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], " 001 alice ")
	assert.Contains(t, lines[1], " 002 alice ")
	assert.Contains(t, lines[2], " 003 alice ")
	assert.Contains(t, lines[3], " 004 alice ")
	assert.Contains(t, lines[4], " 422 alice ")
}

// S2: a wrong PASS disconnects the client with 464 and never reaches
// regPassOK.
func TestWrongPasswordDisconnects(t *testing.T) {
	s := newTestServer("hunter2")
	c := connectClient(s, 1)

	s.dispatch(c, "PASS wrongpass")

	assert.Equal(t, regNew, c.state)
	assert.True(t, c.disconnected)
	lines := linesOf(c)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "464")
}

func TestNickCollisionRejected(t *testing.T) {
	s := newTestServer("hunter2")
	registerClient(t, s, 1, "alice")
	bob := connectClient(s, 2)

	s.dispatch(bob, "PASS hunter2")
	s.dispatch(bob, "NICK alice")

	lines := linesOf(bob)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "433")
	assert.False(t, bob.gotNick)
}

// S3: JOIN broadcasts to every member, the joiner included (the joiner then
// also gets topic + NAMES), and TOPIC is rejected for non-operators on a +t
// channel.
func TestJoinBroadcastsAndTopicPermission(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")
	bob := registerClient(t, s, 2, "bob")

	s.dispatch(alice, "JOIN #lobby")
	alice.outputQueue = nil

	s.dispatch(bob, "JOIN #lobby")

	aliceLines := linesOf(alice)
	require.Len(t, aliceLines, 1, "the existing member only sees bob's JOIN")
	assert.True(t, strings.HasPrefix(aliceLines[0], ":bob!bob@host JOIN #lobby"))

	bobLines := linesOf(bob)
	assert.True(t, strings.HasPrefix(bobLines[0], ":bob!bob@host JOIN #lobby"), "joiner also sees its own JOIN")
	assert.Contains(t, bobLines[len(bobLines)-1], "366")

	bob.outputQueue = nil
	s.dispatch(bob, "TOPIC #lobby :new topic")
	bobLines = linesOf(bob)
	require.Len(t, bobLines, 1)
	assert.Contains(t, bobLines[0], "482", "bob is not an operator on #lobby")

	alice.outputQueue = nil
	s.dispatch(alice, "TOPIC #lobby :new topic")
	assert.Equal(t, "new topic", s.channels["#lobby"].Topic)
}

// S4: NAMES (delivered via JOIN's 353) lists members in roster order with
// '@' prefixing operators.
func TestNamesOrderingAndOperatorPrefix(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")
	bob := registerClient(t, s, 2, "bob")
	carol := registerClient(t, s, 3, "carol")

	s.dispatch(alice, "JOIN #lobby")
	s.dispatch(bob, "JOIN #lobby")
	carol.outputQueue = nil
	s.dispatch(carol, "JOIN #lobby")

	lines := linesOf(carol)
	var names string
	for _, l := range lines {
		if strings.Contains(l, "353") {
			names = l
		}
	}
	require.NotEmpty(t, names)
	assert.Equal(t, "@alice bob carol ", names[strings.Index(names, "#lobby")+len("#lobby")+2:])
}

// S5: PART on the last member removes the channel from the registry; a
// later JOIN of the same name creates it fresh (new operator).
func TestEmptyChannelIsCollectedThenRecreated(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")

	s.dispatch(alice, "JOIN #lobby")
	require.Contains(t, s.channels, "#lobby")

	s.dispatch(alice, "PART #lobby")
	assert.NotContains(t, s.channels, "#lobby")

	bob := registerClient(t, s, 2, "bob")
	s.dispatch(bob, "JOIN #lobby")
	require.Contains(t, s.channels, "#lobby")
	assert.True(t, s.channels["#lobby"].isOperator(bob.fd), "recreated channel gets a fresh operator")
}

func TestPrivmsgToNonexistentChannel(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")

	s.dispatch(alice, "PRIVMSG #ghost :hello")

	lines := linesOf(alice)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "403")
}

func TestPrivmsgExcludesSender(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")
	bob := registerClient(t, s, 2, "bob")

	s.dispatch(alice, "JOIN #lobby")
	s.dispatch(bob, "JOIN #lobby")
	alice.outputQueue = nil
	bob.outputQueue = nil

	s.dispatch(alice, "PRIVMSG #lobby :hello")

	assert.Empty(t, linesOf(alice), "sender does not receive its own broadcast")
	lines := linesOf(bob)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "PRIVMSG #lobby :hello")
}

func TestUnregisteredClientIsGatedFromChannelCommands(t *testing.T) {
	s := newTestServer("hunter2")
	c := connectClient(s, 1)

	s.dispatch(c, "JOIN #lobby")

	lines := linesOf(c)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "451")
}

func TestQuitPartsAllChannelsWithFixedBroadcastText(t *testing.T) {
	s := newTestServer("hunter2")
	alice := registerClient(t, s, 1, "alice")
	bob := registerClient(t, s, 2, "bob")

	s.dispatch(alice, "JOIN #lobby")
	s.dispatch(bob, "JOIN #lobby")
	bob.outputQueue = nil

	s.dispatch(alice, "QUIT :goodbye cruel world")

	assert.True(t, alice.disconnected)
	aliceLines := linesOf(alice)
	require.Len(t, aliceLines, 1)
	assert.Equal(t, "ERROR :goodbye cruel world", aliceLines[0])

	s.partAllChannels(alice)
	bobLines := linesOf(bob)
	require.Len(t, bobLines, 1)
	assert.Contains(t, bobLines[0], "QUIT :Connection closed", "broadcast text is fixed regardless of the client's own reason")
}
