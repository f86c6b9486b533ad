package resource

import (
	"net"
	"strconv"
	"testing"
)

func TestFreePort_Bindable(t *testing.T) {
	port, err := FreePort("127.0.0.1")
	if err != nil {
		t.Fatalf("FreePort failed: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("Port out of range: %d", port)
	}

	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Allocated port %d should be bindable: %v", port, err)
	}
	l.Close()
}

func TestResolvePort_KeepsExplicit(t *testing.T) {
	port, err := ResolvePort("127.0.0.1", 8888)
	if err != nil || port != 8888 {
		t.Errorf("Expected 8888, got %d (%v)", port, err)
	}
}

func TestResolvePort_ZeroAllocates(t *testing.T) {
	port, err := ResolvePort("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("ResolvePort failed: %v", err)
	}
	if port == 0 {
		t.Error("Expected a nonzero port")
	}
}

func TestFreePort_BadHost(t *testing.T) {
	if _, err := FreePort("256.0.0.1"); err == nil {
		t.Error("Expected error for invalid host")
	}
}

// Personal.AI order the ending
