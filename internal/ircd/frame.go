package ircd

import "bytes"

// maxInputBufferSize is the hard cap on a client's unparsed input buffer
// (spec.md §4.2, §5 "Resource limits").
const maxInputBufferSize = 8192

// readChunkSize is how much we attempt to read from a socket per
// read-ready event (spec.md §4.2 "Read path").
const readChunkSize = 4096

// extractFrames pulls every complete "\r\n"-terminated line out of buf,
// returning the frames found and the unconsumed remainder (a partial frame,
// if any, is left in the remainder for the next read). Empty lines are
// silently skipped, per spec.md §4.2.
func extractFrames(buf []byte) (frames []string, remainder []byte) {
	for {
		idx := bytes.Index(buf, []byte("\r\n"))
		if idx == -1 {
			break
		}

		line := buf[:idx]
		if len(line) > 0 {
			frames = append(frames, string(line))
		}
		buf = buf[idx+2:]
	}

	return frames, buf
}
