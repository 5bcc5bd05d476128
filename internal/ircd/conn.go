package ircd

import "golang.org/x/sys/unix"

// handleReadable implements spec.md §4.2 "Read path" for one client: read up
// to readChunkSize bytes, append to the input buffer, frame off complete
// lines, and enforce the buffer-size cap. It returns the frames ready for
// the parser.
func (c *Client) handleReadable() (frames []string) {
	buf := make([]byte, readChunkSize)

	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			c.inputBuffer = append(c.inputBuffer, buf[:n]...)
			metricBytesRead.Add(float64(n))
		}

		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			// Any other errno: treat like a disconnect (spec.md §4.2).
			c.markDisconnected("read error")
			break
		}

		if n == 0 {
			// Peer closed (spec.md §4.2 "recv returning 0 means the peer closed").
			c.markDisconnected("Connection closed")
			break
		}

		// One chunk per read-ready event; readiness is level-triggered, so
		// any bytes still pending are reported again on the next iteration.
		break
	}

	var newFrames []string
	newFrames, c.inputBuffer = extractFrames(c.inputBuffer)
	frames = append(frames, newFrames...)

	if len(c.inputBuffer) > maxInputBufferSize {
		c.enqueue("ERROR :Client exceeded buffer size limit")
		drainNow(c)
		c.inputBuffer = nil
		c.markDisconnected("Client exceeded buffer size limit")
	}

	return frames
}

// handleWritable implements spec.md §4.2 "Write path": drain the output
// queue until it empties, a send would block, or an unrecoverable error
// occurs.
func (c *Client) handleWritable() {
	drainNow(c)
}

// drainNow attempts to flush as much of c's output queue as the socket will
// currently accept, per spec.md §4.2/§5 invariant I7 (FIFO, partial-send
// suffix retained at the head).
func drainNow(c *Client) {
	for len(c.outputQueue) > 0 {
		chunk := c.outputQueue[0]

		n, err := unix.Write(c.fd, chunk)
		if n > 0 {
			metricBytesWritten.Add(float64(n))
		}

		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			// ECONNRESET, EPIPE, or anything else: disconnect (spec.md §4.2/§7).
			c.markDisconnected("write error")
			return
		}

		if n == len(chunk) {
			c.outputQueue = c.outputQueue[1:]
			continue
		}

		// Short send: keep the unsent suffix at the head of the queue.
		c.outputQueue[0] = chunk[n:]
		return
	}
}
