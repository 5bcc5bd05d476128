package ircd

import (
	"fmt"
	"time"
)

// dispatch parses one framed line and routes it to the appropriate
// handler, enforcing the registration gate (spec.md §4.3, invariant I5).
//
// Grounded on the teacher's handleMessage in ircd.go: a chain of command
// checks, with registration-gating applied before any command-specific
// handler runs.
func (s *Server) dispatch(c *Client, line string) {
	c.lastActivity = time.Now().Unix()

	m, ok := parseMessage(line)
	if !ok {
		return
	}
	metricCommandsTotal.WithLabelValues(m.Command).Inc()

	switch m.Command {
	case "PASS":
		s.passCommand(c, m)
		return
	case "NICK":
		s.nickCommand(c, m)
		return
	case "USER":
		s.userCommand(c, m)
		return
	case "QUIT":
		s.quitCommand(c, m)
		return
	}

	if c.state != regRegistered {
		s.reply(c, errNotRegistered, "You have not registered")
		return
	}

	switch m.Command {
	case "JOIN":
		s.joinCommand(c, m)
	case "PART":
		s.partCommand(c, m)
	case "PRIVMSG":
		s.privmsgCommand(c, m)
	case "TOPIC":
		s.topicCommand(c, m)
	}
	// Unknown commands from a registered client are silently ignored:
	// spec.md §6 does not define a reply for them.
}

func (s *Server) passCommand(c *Client, m message) {
	if c.state == regRegistered {
		s.reply(c, errAlreadyRegistred, "You may not reregister")
		return
	}

	if len(m.Params) == 0 || m.Params[0] != s.password {
		s.reply(c, errPasswdMismatch, "Password incorrect")
		c.markDisconnected("Password incorrect")
		return
	}

	c.passwordValidated = true
	c.state = regPassOK
}

func (s *Server) nickCommand(c *Client, m message) {
	if len(m.Params) == 0 || m.Params[0] == "" {
		s.reply(c, errNoNicknameGiven, "No nickname given")
		return
	}

	nick := m.Params[0]

	if !isValidNick(nick) {
		s.reply(c, errErroneousNickname, nick, "Erroneous nickname")
		return
	}

	if existing, exists := s.nicks[nick]; exists && existing.fd != c.fd {
		s.reply(c, errNicknameInUse, nick, "Nickname is already in use")
		return
	}

	oldNick := c.nickname
	if oldNick != "" {
		delete(s.nicks, oldNick)
	}
	s.nicks[nick] = c
	c.nickname = nick
	c.gotNick = true

	// A nick change after registration is a visible event; tell every
	// channel the client shares with others, and the client itself exactly
	// once, as the teacher's nickCommand does. During initial registration
	// there is nothing to announce yet (no uhost, not on any channel).
	if c.state == regRegistered {
		s.announceNickChange(c, oldNick, nick)
		return
	}

	s.maybeCompleteRegistration(c)
}

func (s *Server) announceNickChange(c *Client, oldNick, newNick string) {
	announced := map[int]struct{}{}
	prefix := fmt.Sprintf("%s!%s@%s", oldNick, c.username, c.hostname)

	for name := range c.joinedChannels {
		ch, exists := s.channels[name]
		if !exists {
			continue
		}
		for _, fd := range ch.snapshotRoster() {
			if _, done := announced[fd]; done {
				continue
			}
			member, ok := s.clients[fd]
			if !ok {
				continue
			}
			s.send(member, formatLine(prefix, "NICK", newNick))
			announced[fd] = struct{}{}
		}
	}

	if _, done := announced[c.fd]; !done {
		s.send(c, formatLine(prefix, "NICK", newNick))
	}
}

func (s *Server) userCommand(c *Client, m message) {
	if c.state == regRegistered {
		s.reply(c, errAlreadyRegistred, "You may not reregister")
		return
	}

	if !c.passwordValidated {
		s.reply(c, errPasswdMismatch, "Password incorrect")
		return
	}

	if len(m.Params) < 4 {
		s.reply(c, errNeedMoreParams, "USER", "Not enough parameters")
		return
	}

	c.username = m.Params[0]
	c.realname = m.Params[3]
	c.gotUser = true

	s.maybeCompleteRegistration(c)
}

// maybeCompleteRegistration moves a client into the REGISTERED state once
// PASS, NICK, and USER have all succeeded (spec.md §4.3 "REGISTERED"),
// sending the welcome burst in order.
func (s *Server) maybeCompleteRegistration(c *Client) {
	if c.state == regRegistered {
		return
	}
	if !c.passwordValidated || !c.gotNick || !c.gotUser {
		return
	}

	c.state = regRegistered
	c.authenticated = true

	s.reply(c, rplWelcome, fmt.Sprintf("Welcome to the Internet Relay Network %s", c.uhost()))
	s.reply(c, rplYourHost, fmt.Sprintf("Your host is %s, running version %s", s.name, s.version))
	s.reply(c, rplCreated, fmt.Sprintf("This server was created %s", s.created))
	s.reply(c, rplMyInfo, s.name, s.version, "io", "itkl")
	s.reply(c, errNoMOTD, "MOTD File is missing")
}

func (s *Server) joinCommand(c *Client, m message) {
	if len(m.Params) == 0 {
		s.reply(c, errNeedMoreParams, "JOIN", "Not enough parameters")
		return
	}

	name := m.Params[0]
	if !isValidChannel(name) {
		s.reply(c, errNoSuchChannel, name, "Invalid channel name")
		return
	}

	if c.onChannel(name) {
		return
	}

	ch, exists := s.channels[name]
	if !exists {
		ch = newChannel(name, c.fd)
		s.channels[name] = ch
		metricChannels.Set(float64(len(s.channels)))
	} else {
		ch.addMember(c.fd)
	}
	c.joinedChannels[name] = struct{}{}

	s.broadcastToChannel(ch, nil, formatLine(c.uhost(), "JOIN", ch.Name))

	if ch.Topic == "" {
		s.reply(c, rplNoTopic, ch.Name, "No topic is set")
	} else {
		s.reply(c, rplTopic, ch.Name, ch.Topic)
	}

	s.reply(c, rplNamReply, ch.Name, namesList(ch, s))
	s.reply(c, rplEndOfNames, ch.Name, "End of NAMES list")
}

// namesList formats the NAMES payload in roster order, per spec.md §4.4
// "Names list formatting".
func namesList(ch *Channel, s *Server) string {
	out := ""
	for _, fd := range ch.roster {
		member, ok := s.clients[fd]
		if !ok {
			continue
		}
		if ch.isOperator(fd) {
			out += "@"
		}
		out += member.nickname + " "
	}
	return out
}

func (s *Server) partCommand(c *Client, m message) {
	if len(m.Params) == 0 {
		s.reply(c, errNeedMoreParams, "PART", "Not enough parameters")
		return
	}

	name := m.Params[0]
	reason := ""
	if len(m.Params) >= 2 {
		reason = m.Params[1]
	}

	ch, exists := s.channels[name]
	if !exists || !c.onChannel(name) {
		s.reply(c, errNotOnChannel, name, "You're not on that channel")
		return
	}

	line := formatLine(c.uhost(), "PART", ch.Name)
	if reason != "" {
		line = formatLine(c.uhost(), "PART", ch.Name, reason)
	}
	s.broadcastToChannel(ch, nil, line)

	s.removeFromChannel(c, ch)
}

// removeFromChannel implements spec.md §4.4 "Removal & collection": drop
// the member, and if the roster is now empty, delete the channel from the
// registry.
func (s *Server) removeFromChannel(c *Client, ch *Channel) {
	nowEmpty := ch.removeMember(c.fd)
	delete(c.joinedChannels, ch.Name)
	if nowEmpty {
		delete(s.channels, ch.Name)
		metricChannels.Set(float64(len(s.channels)))
	}
}

func (s *Server) privmsgCommand(c *Client, m message) {
	if len(m.Params) == 0 {
		s.reply(c, errNeedMoreParams, "PRIVMSG", "No recipient given")
		return
	}
	if len(m.Params) == 1 {
		s.reply(c, errNeedMoreParams, "PRIVMSG", "No text to send")
		return
	}

	target := m.Params[0]
	text := m.Params[1]

	if len(target) > 0 && target[0] == '#' {
		ch, exists := s.channels[target]
		if !exists {
			s.reply(c, errNoSuchChannel, target, "No such channel")
			return
		}
		s.broadcastToChannel(ch, c, formatLine(c.uhost(), "PRIVMSG", ch.Name, text))
		return
	}

	targetClient, exists := s.nicks[target]
	if !exists {
		s.reply(c, errNoSuchNick, target, "No such nick/channel")
		return
	}
	s.send(targetClient, formatLine(c.uhost(), "PRIVMSG", target, text))
}

func (s *Server) topicCommand(c *Client, m message) {
	if len(m.Params) == 0 {
		s.reply(c, errNeedMoreParams, "TOPIC", "Not enough parameters")
		return
	}

	name := m.Params[0]
	ch, exists := s.channels[name]
	if !exists {
		s.reply(c, errNoSuchChannel, name, "No such channel")
		return
	}
	if !c.onChannel(name) {
		s.reply(c, errNotOnChannel, name, "You're not on that channel")
		return
	}

	if len(m.Params) < 2 {
		if ch.Topic == "" {
			s.reply(c, rplNoTopic, ch.Name, "No topic is set")
			return
		}
		s.reply(c, rplTopic, ch.Name, ch.Topic)
		return
	}

	if ch.TopicRestricted && !ch.isOperator(c.fd) {
		s.reply(c, errChanOPrivsNeeded, ch.Name, "You're not channel operator")
		return
	}

	ch.Topic = m.Params[1]
	s.broadcastToChannel(ch, nil, formatLine(c.uhost(), "TOPIC", ch.Name, ch.Topic))
}

func (s *Server) quitCommand(c *Client, m message) {
	reason := "Connection closed"
	if len(m.Params) > 0 && m.Params[0] != "" {
		reason = m.Params[0]
	}
	s.send(c, formatLine("", "ERROR", reason))
	c.markDisconnected(reason)
}

// partAllChannels tells every channel a client is on that it has quit
// (spec.md §4.4 "QUIT broadcasts"), then drops the membership. Used both by
// the QUIT handler's eventual reap and by disconnects triggered by I/O
// errors -- in both cases destruction flows through destroyClient. The
// broadcast text is the fixed string spec.md §4.4 specifies, independent of
// any reason the client itself supplied on its QUIT command.
func (s *Server) partAllChannels(c *Client) {
	names := make([]string, 0, len(c.joinedChannels))
	for name := range c.joinedChannels {
		names = append(names, name)
	}

	for _, name := range names {
		ch, exists := s.channels[name]
		if !exists {
			continue
		}
		s.broadcastToChannel(ch, nil, formatLine(c.uhost(), "QUIT", "Connection closed"))
		s.removeFromChannel(c, ch)
	}
}

// broadcastToChannel sends msg to every current member of ch except
// `except` (which may be nil), in roster order, per spec.md §4.4
// "Broadcast". It snapshots the roster first since handlers are free to
// mutate membership (spec.md §4.4 "Empty-channel collection").
func (s *Server) broadcastToChannel(ch *Channel, except *Client, msg string) {
	for _, fd := range ch.snapshotRoster() {
		if except != nil && fd == except.fd {
			continue
		}
		member, ok := s.clients[fd]
		if !ok {
			continue
		}
		s.send(member, msg)
	}
}
