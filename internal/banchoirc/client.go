// Package banchoirc implements a minimal IRC client for Bancho, the osu!
// chat gateway. It joins a set of channels, unwraps CTCP ACTION framing, and
// hands every chat line to a handler as a core.ChatEvent.
package banchoirc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/you/bancho-relay/internal/core"
)

const (
	defaultAddr  = "irc.ppy.sh:6667"
	readDeadline = 3 * time.Minute
	pingInterval = 2 * time.Minute
)

type Config struct {
	Username string
	// Password is the static IRC server password. PasswordProvider, when
	// set, is consulted on every (re)connect so rotated credentials take
	// effect without restarting the process.
	Password         string
	PasswordProvider func() string
	Channels         []string
	// AllowPM delivers private messages as events on the PM pseudo-channel.
	AllowPM bool
	// Addr overrides the Bancho endpoint (tests point this at a local listener).
	Addr string
}

type Handler func(core.ChatEvent)

type Client struct {
	cfg    Config
	handle Handler

	mu   sync.Mutex
	conn net.Conn
}

var errAuthFailed = errors.New("banchoirc: authentication failed")

func New(cfg Config, h Handler) *Client {
	return &Client{cfg: cfg, handle: h}
}

// Run connects and reads until ctx is cancelled, reconnecting with capped
// backoff on any disconnect. Authentication failures are retried on the same
// schedule; the password provider is re-read each attempt.
func (c *Client) Run(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Username) == "" {
		return errors.New("banchoirc: username is required")
	}
	if len(c.cfg.Channels) == 0 && !c.cfg.AllowPM {
		return errors.New("banchoirc: no channels configured")
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}

			if errors.Is(err, errAuthFailed) {
				log.Printf("banchoirc: authentication failed; retrying in %s", backoff)
			} else {
				log.Printf("banchoirc: disconnected: %v; reconnecting in %s", err, backoff)
			}

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			if backoff < 60*time.Second {
				backoff *= 2
				if backoff > 60*time.Second {
					backoff = 60 * time.Second
				}
			}
			continue
		}

		backoff = time.Second
	}
}

// ForceReconnect drops the live connection; the Run loop redials and picks up
// the current password from the provider. Safe to call from any goroutine.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) password() string {
	if c.cfg.PasswordProvider != nil {
		if provided := strings.TrimSpace(c.cfg.PasswordProvider()); provided != "" {
			return provided
		}
	}
	return strings.TrimSpace(c.cfg.Password)
}

func (c *Client) runOnce(ctx context.Context) error {
	pass := c.password()
	if pass == "" {
		return errors.New("banchoirc: password is required")
	}

	addr := defaultAddr
	if strings.TrimSpace(c.cfg.Addr) != "" {
		addr = strings.TrimSpace(c.cfg.Addr)
	}

	log.Printf("banchoirc: connecting to %s as %s", addr, c.cfg.Username)

	d := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	// write one IRC line and flush
	send := func(s string) error {
		_, err := rw.WriteString(s + "\r\n")
		if err != nil {
			return err
		}
		return rw.Flush()
	}

	// ensure the per-connection closer goroutine exits when this runOnce returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close() // unblock reader
		case <-done:
		}
	}()

	if err := send("PASS " + pass); err != nil {
		return fmt.Errorf("send PASS: %w", err)
	}
	if err := send("NICK " + c.cfg.Username); err != nil {
		return fmt.Errorf("send NICK: %w", err)
	}
	if err := send("USER " + c.cfg.Username + " 0 * :" + c.cfg.Username); err != nil {
		return fmt.Errorf("send USER: %w", err)
	}

	reader := rw.Reader
	joined := false
	var (
		total    int
		window   int
		nextTick = time.Now().Add(30 * time.Second)
		nextPing = time.Now().Add(pingInterval)
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				now := time.Now()
				if now.After(nextPing) || now.Equal(nextPing) {
					if err := send("PING :keepalive"); err != nil {
						return fmt.Errorf("send PING: %w", err)
					}
					nextPing = now.Add(pingInterval)
				}
				continue
			}
			return fmt.Errorf("read: %w", err)
		}

		now := time.Now()
		if now.After(nextTick) || now.Equal(nextTick) {
			log.Printf("banchoirc: recv %d msgs (total %d)", window, total)
			window = 0
			nextTick = now.Add(30 * time.Second)
		}
		nextPing = now.Add(pingInterval)

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		switch numeric(line) {
		case "001":
			// welcome; safe to join now
			if !joined {
				for _, ch := range c.cfg.Channels {
					if err := send("JOIN " + ch); err != nil {
						return fmt.Errorf("send JOIN: %w", err)
					}
				}
				joined = true
				log.Printf("banchoirc: logged in, joining %d channels", len(c.cfg.Channels))
			}
			continue
		case "464":
			log.Printf("banchoirc: server rejected credentials")
			return errAuthFailed
		}

		if strings.HasPrefix(line, "PING ") || line == "PING" {
			payload := strings.TrimPrefix(line, "PING")
			if err := send("PONG" + payload); err != nil {
				return fmt.Errorf("send PONG: %w", err)
			}
			nextPing = time.Now().Add(pingInterval)
			continue
		}

		if ev, ok := c.parsePrivmsg(line); ok {
			total++
			window++
			if c.handle != nil {
				c.handle(ev)
			}
		}
	}
}

// numeric returns the three-digit reply code of a server line, or "".
func numeric(line string) string {
	if !strings.HasPrefix(line, ":") {
		return ""
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return ""
	}
	code := parts[1]
	if len(code) != 3 {
		return ""
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return code
}

// parsePrivmsg turns ":nick!user@host PRIVMSG <target> :text" into a
// ChatEvent. Channel targets must be joined channels; targets equal to our
// nick are private messages, delivered on the PM pseudo-channel when enabled.
func (c *Client) parsePrivmsg(line string) (core.ChatEvent, bool) {
	if !strings.HasPrefix(line, ":") {
		return core.ChatEvent{}, false
	}
	rest := line[1:]

	idx := strings.Index(rest, " ")
	if idx == -1 {
		return core.ChatEvent{}, false
	}
	prefix := rest[:idx]
	rest = strings.TrimSpace(rest[idx+1:])

	if !strings.HasPrefix(strings.ToUpper(rest), "PRIVMSG ") {
		return core.ChatEvent{}, false
	}
	rest = rest[len("PRIVMSG "):]

	idx = strings.Index(rest, " ")
	if idx == -1 {
		return core.ChatEvent{}, false
	}
	target := rest[:idx]
	rest = strings.TrimSpace(rest[idx+1:])

	if !strings.HasPrefix(rest, ":") {
		return core.ChatEvent{}, false
	}
	text := rest[1:]

	author := extractUser(prefix)
	if author == "" || strings.EqualFold(author, c.cfg.Username) {
		return core.ChatEvent{}, false
	}

	channel := ""
	if strings.HasPrefix(target, "#") {
		if !c.joinedChannel(target) {
			return core.ChatEvent{}, false
		}
		channel = target
	} else if strings.EqualFold(target, c.cfg.Username) {
		if !c.cfg.AllowPM {
			return core.ChatEvent{}, false
		}
		channel = core.PMChannel
	} else {
		return core.ChatEvent{}, false
	}

	text, action := unwrapAction(text)
	return core.NewChatEvent(channel, author, text, action), true
}

func (c *Client) joinedChannel(name string) bool {
	for _, ch := range c.cfg.Channels {
		if strings.EqualFold(ch, name) {
			return true
		}
	}
	return false
}

func extractUser(prefix string) string {
	if idx := strings.Index(prefix, "!"); idx != -1 {
		return prefix[:idx]
	}
	return prefix
}

// unwrapAction strips CTCP ACTION framing ("\x01ACTION <text>\x01") and
// reports whether the line was an action. Bancho occasionally omits the
// trailing delimiter, so only the prefix is required.
func unwrapAction(text string) (string, bool) {
	const marker = "\x01ACTION"
	if !strings.HasPrefix(text, marker) {
		return text, false
	}
	out := strings.TrimPrefix(text, marker)
	out = strings.TrimSuffix(out, "\x01")
	return strings.TrimSpace(out), true
}
