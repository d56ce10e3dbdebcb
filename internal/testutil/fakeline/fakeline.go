// Package fakeline is an in-memory instrument transport for driver tests.
package fakeline

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNoReply = errors.New("fakeline: no scripted reply")

// Transport answers commands from a script. Replies are matched by exact
// command first, then by the longest registered prefix.
type Transport struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	sent    []string
	closed  bool
}

func New() *Transport {
	return &Transport{replies: make(map[string]string), errs: make(map[string]error)}
}

// Reply scripts the reply for commands matching cmd.
func (t *Transport) Reply(cmd, reply string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = reply
	return t
}

// Fail scripts an error for commands matching cmd.
func (t *Transport) Fail(cmd string, err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs[cmd] = err
	return t
}

// Sent returns every command written so far.
func (t *Transport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Send(_ context.Context, cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, cmd)
	_, err := t.lookup(cmd)
	if errors.Is(err, ErrNoReply) {
		return nil
	}
	return err
}

func (t *Transport) Ask(_ context.Context, cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, cmd)
	return t.lookup(cmd)
}

func (t *Transport) AskN(ctx context.Context, cmd string, n int) (string, error) {
	ret, err := t.Ask(ctx, cmd)
	if err != nil {
		return "", err
	}
	if len(ret) > n {
		ret = ret[:n]
	}
	return ret, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) lookup(cmd string) (string, error) {
	if err, ok := t.errs[cmd]; ok {
		return "", err
	}
	if r, ok := t.replies[cmd]; ok {
		return r, nil
	}
	best := -1
	var reply string
	for prefix, r := range t.replies {
		if strings.HasPrefix(cmd, prefix) && len(prefix) > best {
			best, reply = len(prefix), r
		}
	}
	if best < 0 {
		return "", ErrNoReply
	}
	return reply, nil
}
