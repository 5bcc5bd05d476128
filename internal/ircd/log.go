package ircd

import "github.com/sirupsen/logrus"

// SetLogger overrides the server's logger. A Server built with New uses
// logrus.StandardLogger(); callers that want JSON output, a different
// level, or a different writer (as the teacher does with log.SetFlags(0))
// call this before Setup.
func (s *Server) SetLogger(l *logrus.Logger) {
	s.log = l
}
