package mail

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Console writes each message to w followed by a separator line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Send(_ context.Context, msg Message) error {
	raw, err := msg.Bytes(time.Now(), "")
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(raw); err != nil {
		return err
	}
	_, err = io.WriteString(c.w, strings.Repeat("-", 79)+"\n")
	return err
}
