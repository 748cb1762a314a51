package server

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"ConvergeCast/internal/conn"
	"ConvergeCast/internal/linklayer/simlink"
	"ConvergeCast/internal/meshaddr"
)

func addr(n uint16) meshaddr.Addr { return meshaddr.FromUint16(n) }

func newSinkConn(t *testing.T) *conn.Connection {
	t.Helper()
	medium := simlink.NewMedium()
	link := medium.Join(addr(1))
	c := conn.New(addr(1), true, link)
	if err := c.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	nc, err := net.Dial("tcp", s.listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestParentReportsNoParentOnSink(t *testing.T) {
	c := newSinkConn(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s, err := New(lis, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go s.Start()
	defer s.Stop()

	nc := dial(t, s)
	if _, err := nc.Write([]byte("parent\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := bufio.NewReader(nc).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(reply) != "no parent" {
		t.Fatalf("got %q", reply)
	}
}

func TestRoutesIncludesSelf(t *testing.T) {
	c := newSinkConn(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s, err := New(lis, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go s.Start()
	defer s.Stop()

	nc := dial(t, s)
	if _, err := nc.Write([]byte("routes\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := bufio.NewReader(nc).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(reply, "01:00") {
		t.Fatalf("expected self route in reply, got %q", reply)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	c := newSinkConn(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s, err := New(lis, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go s.Start()
	defer s.Stop()

	nc := dial(t, s)
	if _, err := nc.Write([]byte("frobnicate\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := bufio.NewReader(nc).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(reply), "error:") {
		t.Fatalf("got %q", reply)
	}
}
