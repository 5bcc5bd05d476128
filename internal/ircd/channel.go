package ircd

import "strconv"

// Channel holds everything to do with a channel (spec.md §3 "Channel").
//
// Grounded on the teacher's Channel{Name, Members map[uint64]*Client}, but
// Members is replaced with an explicit ordered roster plus a member-set
// index: spec.md's NAMES ordering (P4/S4) and mode semantics require
// insertion order and richer per-channel state than the teacher's simple
// membership map can express.
type Channel struct {
	Name string

	Topic    string
	Password string // mode +k when non-empty

	roster     []int // fd, insertion order; drives NAMES
	memberSet  map[int]struct{}
	operators  map[int]struct{}
	invited    map[int]struct{}

	UserLimit       int // mode +l; 0 == unlimited
	InviteOnly      bool
	TopicRestricted bool
}

func newChannel(name string, fd int) *Channel {
	ch := &Channel{
		Name:            name,
		roster:          nil,
		memberSet:       make(map[int]struct{}),
		operators:       make(map[int]struct{}),
		invited:         make(map[int]struct{}),
		TopicRestricted: true, // spec.md §3: initial value TRUE
	}
	ch.addMember(fd)
	ch.operators[fd] = struct{}{}
	return ch
}

func (ch *Channel) isMember(fd int) bool {
	_, ok := ch.memberSet[fd]
	return ok
}

func (ch *Channel) isOperator(fd int) bool {
	_, ok := ch.operators[fd]
	return ok
}

func (ch *Channel) isInvited(fd int) bool {
	_, ok := ch.invited[fd]
	return ok
}

func (ch *Channel) addMember(fd int) {
	if ch.isMember(fd) {
		return
	}
	ch.roster = append(ch.roster, fd)
	ch.memberSet[fd] = struct{}{}
}

// removeMember removes fd from the roster and the operator set. It reports
// whether the channel is now empty (spec.md §4.4 "Removal & collection").
func (ch *Channel) removeMember(fd int) (nowEmpty bool) {
	if !ch.isMember(fd) {
		return len(ch.roster) == 0
	}

	delete(ch.memberSet, fd)
	delete(ch.operators, fd)

	for i, m := range ch.roster {
		if m == fd {
			ch.roster = append(ch.roster[:i], ch.roster[i+1:]...)
			break
		}
	}

	return len(ch.roster) == 0
}

// snapshotRoster returns a copy of the roster, safe to iterate while the
// channel may be mutated (spec.md §4.4 "must never happen while an iterator
// is live on its roster").
func (ch *Channel) snapshotRoster() []int {
	out := make([]int, len(ch.roster))
	copy(out, ch.roster)
	return out
}

// modeString formats the channel's mode flags in the fixed order i, t, k, l
// (spec.md §4.4 "Mode string"), with any k/l parameters appended after the
// letters block.
func (ch *Channel) modeString() string {
	flags := "+"
	var params []string

	if ch.InviteOnly {
		flags += "i"
	}
	if ch.TopicRestricted {
		flags += "t"
	}
	if ch.Password != "" {
		flags += "k"
		params = append(params, ch.Password)
	}
	if ch.UserLimit > 0 {
		flags += "l"
		params = append(params, strconv.Itoa(ch.UserLimit))
	}

	for _, p := range params {
		flags += " " + p
	}
	return flags
}
