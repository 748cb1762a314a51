// Package server hosts the debug introspection endpoint: a plain
// newline-delimited TCP protocol exposing a running Connection's routing
// state and a manual send, for cmd/meshctl to attach to.
package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"ConvergeCast/internal/conn"
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
)

// Server wraps a TCP listener hosting the debug protocol against a single
// Connection.
type Server struct {
	listener net.Listener
	c        *conn.Connection
	lgr      logger.Logger
}

// New creates a Server bound to lis, answering debug commands against c.
func New(lis net.Listener, c *conn.Connection, opts ...Option) (*Server, error) {
	s := &Server{
		listener: lis,
		c:        c,
		lgr:      &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start accepts connections until the listener is closed, serving each on
// its own goroutine. It returns the listener's Accept error, nil after a
// clean Stop.
func (s *Server) Start() error {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			if errIsClosed(err) {
				return nil
			}
			return fmt.Errorf("debug server: accept: %w", err)
		}
		go s.serve(c)
	}
}

// Stop closes the listener, unblocking Start.
func (s *Server) Stop() {
	_ = s.listener.Close()
}

func (s *Server) serve(nc net.Conn) {
	defer nc.Close()
	scanner := bufio.NewScanner(nc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := s.dispatch(line)
		if _, err := fmt.Fprintln(nc, reply); err != nil {
			s.lgr.Debug("debug server: write failed", logger.F("err", err))
			return
		}
	}
}

// dispatch runs one command line and returns the reply text. One line in,
// one line out: simple enough to drive with nc or a line-oriented liner
// REPL, no framing beyond '\n'.
func (s *Server) dispatch(line string) string {
	fields := strings.Fields(line)
	switch fields[0] {
	case "routes":
		return formatRoutes(s.c)
	case "subtree":
		return formatSubtree(s.c)
	case "parent":
		return formatParent(s.c)
	case "send":
		if len(fields) < 3 {
			return "error: usage: send <addr> <text>"
		}
		return s.handleSend(fields[1], strings.Join(fields[2:], " "))
	default:
		return fmt.Sprintf("error: unknown command %q (routes|subtree|parent|send)", fields[0])
	}
}

func (s *Server) handleSend(addrStr, text string) string {
	dest, err := meshaddr.Parse(addrStr)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if err := s.c.Send(dest, []byte(text)); err != nil {
		return fmt.Sprintf("error: send failed: %v", err)
	}
	return "ok"
}

func formatRoutes(c *conn.Connection) string {
	entries := c.RoutingTable().Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "%d routes:", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, " %s->%s(%s,metric=%d,rssi=%d)",
			e.Destination, e.NextHop, e.Type, e.Metric, e.RSSI)
	}
	return b.String()
}

func formatSubtree(c *conn.Connection) string {
	members := c.Subtree().Members()
	var b strings.Builder
	fmt.Fprintf(&b, "%d members:", len(members))
	for _, m := range members {
		fmt.Fprintf(&b, " %s", m)
	}
	return b.String()
}

func formatParent(c *conn.Connection) string {
	p, ok := c.Parent()
	if !ok {
		return "no parent"
	}
	return fmt.Sprintf("parent=%s metric=%d", p, c.Metric())
}

func errIsClosed(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
