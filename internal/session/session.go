// Package session owns the live Bancho connection handle and its
// credentials, so a rotated password can take effect without restarting the
// process.
package session

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// BanchoConn is the reconnect surface of the IRC client.
type BanchoConn interface {
	ForceReconnect()
}

// Session tracks the current password and the connection using it.
type Session struct {
	passwordFile string

	mu       sync.Mutex
	conn     BanchoConn
	password string
}

// New seeds the session with the initial password. passwordFile may be empty
// when the password is static configuration.
func New(passwordFile, initial string) *Session {
	return &Session{passwordFile: passwordFile, password: strings.TrimSpace(initial)}
}

func (s *Session) SetConn(conn BanchoConn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Password is the provider hook handed to the IRC client; it is consulted on
// every (re)connect.
func (s *Session) Password() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.password
}

// ReloadBancho re-reads the password file and forces a reconnect with the
// fresh credentials.
func (s *Session) ReloadBancho() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(s.passwordFile) == "" {
		return fmt.Errorf("password file not configured")
	}
	data, err := os.ReadFile(s.passwordFile)
	if err != nil {
		return fmt.Errorf("read password file: %w", err)
	}
	password := strings.TrimSpace(string(data))
	if password == "" {
		return fmt.Errorf("password file empty")
	}
	s.password = password

	if s.conn == nil {
		return fmt.Errorf("bancho connection unavailable")
	}
	s.conn.ForceReconnect()
	slog.Info("banchoirc: reloaded credentials and reconnecting")
	return nil
}
