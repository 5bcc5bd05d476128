package ircd

// Numeric reply codes used by this server (spec.md §6 "Numeric replies
// used").
const (
	rplWelcome       = "001"
	rplYourHost      = "002"
	rplCreated       = "003"
	rplMyInfo        = "004"
	rplNoTopic       = "331"
	rplTopic         = "332"
	rplNamReply      = "353"
	rplEndOfNames    = "366"
	errNoSuchNick    = "401"
	errNoSuchChannel = "403"
	errNoMOTD        = "422"
	errNoNicknameGiven   = "431"
	errErroneousNickname = "432"
	errNicknameInUse     = "433"
	errNotOnChannel      = "442"
	errNotRegistered     = "451"
	errNeedMoreParams    = "461"
	errAlreadyRegistred  = "462"
	errPasswdMismatch    = "464"
	errChanOPrivsNeeded  = "482"
)

// reply sends a numeric reply to c. Per spec.md §6's format note, the
// client's nick is the first argument, using "*" when it has not been set
// yet.
func (s *Server) reply(c *Client, numeric string, args ...string) {
	nick := c.nickname
	if nick == "" {
		nick = "*"
	}
	params := append([]string{nick}, args...)
	s.send(c, formatLine(s.name, numeric, params...))
}

// send enqueues line (without prefix re-application -- prefix is expected to
// already be baked in by the caller via formatLine, or it is a raw ERROR
// line) on c's output queue.
func (s *Server) send(c *Client, line string) {
	c.enqueue(line)
	metricCommandsReplied.Inc()
}
