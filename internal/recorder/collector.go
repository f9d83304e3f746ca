package recorder

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// chunkCollector drains the encoder output continuously and cuts what has
// arrived into a chunk on every tick. Cutting only appends; it never waits
// on the encoder.
type chunkCollector struct {
	mu      sync.Mutex
	pending bytes.Buffer
	chunks  [][]byte

	stop     chan struct{}
	readDone chan struct{}
	tickDone chan struct{}
}

func newChunkCollector(r io.Reader, interval time.Duration) *chunkCollector {
	c := &chunkCollector{
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
		tickDone: make(chan struct{}),
	}
	go c.read(r)
	go c.tick(interval)
	return c
}

func (c *chunkCollector) read(r io.Reader) {
	defer close(c.readDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.pending.Write(buf[:n])
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("Encoder output read failed", "error", err)
			}
			return
		}
	}
}

func (c *chunkCollector) tick(interval time.Duration) {
	defer close(c.tickDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cut()
		}
	}
}

func (c *chunkCollector) cut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, c.pending.Len())
	copy(chunk, c.pending.Bytes())
	c.pending.Reset()
	c.chunks = append(c.chunks, chunk)
}

// finish waits for the output to reach EOF, flushes what is left and
// returns every chunk in arrival order.
func (c *chunkCollector) finish() [][]byte {
	<-c.readDone
	close(c.stop)
	<-c.tickDone
	c.cut()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks
}

// abort stops ticking without waiting for the output.
func (c *chunkCollector) abort() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.tickDone
}

func assemble(chunks [][]byte) io.Reader {
	readers := make([]io.Reader, len(chunks))
	for i, ch := range chunks {
		readers[i] = bytes.NewReader(ch)
	}
	return io.MultiReader(readers...)
}

func totalBytes(chunks [][]byte) int {
	n := 0
	for _, ch := range chunks {
		n += len(ch)
	}
	return n
}
