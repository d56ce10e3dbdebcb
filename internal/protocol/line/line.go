// Package line implements the text command protocol spoken by the lab
// instruments: one ASCII command per line, one reply per command.
package line

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/labctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrCommandTooLong = errors.New("line: command too long")
	ErrEmptyCommand   = errors.New("line: empty command")
	ErrMissingEOL     = errors.New("line: reply not terminated")
	ErrClosed         = errors.New("line: connection closed")
	ErrInvalidFraming = errors.New("line: invalid framing")
)

// maxReplyBytes bounds one reply line.
const maxReplyBytes = 4096

// Framing describes the line endings and command limits of one device.
type Framing struct {
	WriteEOL   string
	ReadEOL    string
	MaxCommand int // 0 means unlimited
}

func (f Framing) validate() error {
	if f.WriteEOL == "" || f.ReadEOL == "" {
		return fmt.Errorf("%w: line endings required", ErrInvalidFraming)
	}
	if f.MaxCommand < 0 {
		return fmt.Errorf("%w: max command %d", ErrInvalidFraming, f.MaxCommand)
	}
	return nil
}

// Conn is one instrument connection. Exchanges are serialized so a reply is
// always read by the caller that sent the command.
type Conn struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	framing Framing
	cfg     session.Config
	closed  bool
}

// NewConn wraps an established connection.
func NewConn(c net.Conn, framing Framing, cfg session.Config) (*Conn, error) {
	if c == nil {
		return nil, fmt.Errorf("line: nil connection")
	}
	if err := framing.validate(); err != nil {
		return nil, err
	}
	return &Conn{
		conn:    c,
		r:       bufio.NewReaderSize(c, maxReplyBytes),
		framing: framing,
		cfg:     cfg.WithDefaults(),
	}, nil
}

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts.
func Dial(ctx context.Context, addr string, framing Framing, cfg session.Config) (*Conn, error) {
	if err := framing.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; cfg.MaxConnectAttempts == 0 || attempt <= cfg.MaxConnectAttempts; attempt++ {
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Debug().Str("addr", addr).Int("attempt", attempt).Msg("line: connected")
			return NewConn(c, framing, cfg)
		}
		lastErr = err
		if cfg.MaxConnectAttempts != 0 && attempt == cfg.MaxConnectAttempts {
			break
		}
		delay := session.NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Dur("retry_in", delay).Msg("line: dial failed")
		if err := session.Wait(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("line: dial %s: %w", addr, lastErr)
}

// Framing returns the line endings this connection uses.
func (c *Conn) Framing() Framing {
	return c.framing
}

// RemoteAddr returns the device address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send writes cmd followed by the write EOL. No reply is read.
func (c *Conn) Send(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, cmd)
}

// Ask sends cmd and returns the reply line without its EOL.
func (c *Conn) Ask(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(ctx, cmd); err != nil {
		return "", err
	}
	return c.readLine(ctx)
}

// AskN sends cmd and reads a reply of at most n bytes. It is used for devices
// that answer with a short fixed-length reply that may lack the terminator.
// The read ends at the read EOL, after n bytes, or once the reply has started
// and no further byte arrives within quietGap. An EOL trailing an n byte
// reply is discarded so it cannot be taken for the next reply.
func (c *Conn) AskN(ctx context.Context, cmd string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("line: read size %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(ctx, cmd); err != nil {
		return "", err
	}
	reply, err := c.readN(ctx, n)
	if err != nil {
		return "", err
	}
	log.Debug().Str("cmd", cmd).Str("reply", reply).Msg("line: ret")
	return reply, nil
}

// Close closes the connection. Further exchanges fail with ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Conn) send(ctx context.Context, cmd string) error {
	if c.closed {
		return ErrClosed
	}
	if cmd == "" {
		return ErrEmptyCommand
	}
	if c.framing.MaxCommand > 0 && len(cmd) > c.framing.MaxCommand {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrCommandTooLong, cmd, len(cmd), c.framing.MaxCommand)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return err
	}
	log.Debug().Str("cmd", cmd).Msg("line: do")
	if _, err := c.conn.Write([]byte(cmd + c.framing.WriteEOL)); err != nil {
		return c.ioErr(ctx, "write", err)
	}
	return nil
}

func (c *Conn) readLine(ctx context.Context) (string, error) {
	if err := c.conn.SetReadDeadline(c.deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return "", err
	}
	eol := c.framing.ReadEOL
	last := eol[len(eol)-1]
	var b strings.Builder
	for {
		chunk, err := c.r.ReadString(last)
		b.WriteString(chunk)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMissingEOL, c.ioErr(ctx, "read", err))
		}
		if b.Len() > maxReplyBytes {
			return "", fmt.Errorf("%w: reply exceeds %d bytes", ErrMissingEOL, maxReplyBytes)
		}
		if strings.HasSuffix(b.String(), eol) {
			break
		}
	}
	reply := strings.TrimSuffix(b.String(), eol)
	log.Debug().Str("reply", reply).Msg("line: ret")
	return reply, nil
}

// quietGap is how long readN waits for the next byte of a started reply.
const quietGap = 50 * time.Millisecond

func (c *Conn) readN(ctx context.Context, n int) (string, error) {
	deadline := c.deadline(ctx, c.cfg.ReadTimeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	eol := c.framing.ReadEOL
	buf := make([]byte, 0, n)
	for len(buf) < n && !bytes.HasSuffix(buf, []byte(eol)) {
		if len(buf) > 0 && c.r.Buffered() == 0 {
			if err := c.conn.SetReadDeadline(earliest(deadline, time.Now().Add(quietGap))); err != nil {
				return "", err
			}
		}
		ch, err := c.r.ReadByte()
		if err != nil {
			if len(buf) > 0 && errors.Is(err, os.ErrDeadlineExceeded) && time.Now().Before(deadline) {
				// reply ended without a terminator
				break
			}
			return "", c.ioErr(ctx, "read", err)
		}
		buf = append(buf, ch)
	}
	if len(buf) == n && !bytes.HasSuffix(buf, []byte(eol)) {
		c.discardEOL(deadline)
	}
	return strings.TrimSuffix(string(buf), eol), nil
}

// discardEOL drops a read EOL that follows a full fixed-length reply.
func (c *Conn) discardEOL(deadline time.Time) {
	eol := c.framing.ReadEOL
	if err := c.conn.SetReadDeadline(earliest(deadline, time.Now().Add(quietGap))); err != nil {
		return
	}
	if next, err := c.r.Peek(len(eol)); err == nil && string(next) == eol {
		_, _ = c.r.Discard(len(eol))
	}
}

// ioErr wraps a connection error. A deadline that came from ctx is reported
// as the context error.
func (c *Conn) ioErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("line: %s: %w", op, ctxErr)
		}
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return fmt.Errorf("line: %s: %w", op, context.DeadlineExceeded)
		}
	}
	return fmt.Errorf("line: %s: %w", op, err)
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// deadline returns the earlier of the context deadline and now+timeout.
func (c *Conn) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}
