package resource

import (
	"fmt"
	"net"

	"github.com/turtacn/Tandem/pkg/logger"
)

// FreePort asks the kernel for an unused TCP port on host. The listener is
// closed before returning, so the server can bind the port itself.
func FreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()

	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener is not a TCP listener")
	}
	logger.Log.Debug("Resource: Allocated service port", "host", host, "port", tcpAddr.Port)
	return tcpAddr.Port, nil
}

// ResolvePort returns port unchanged unless it is zero, in which case a free
// port on host is allocated.
func ResolvePort(host string, port int) (int, error) {
	if port != 0 {
		return port, nil
	}
	return FreePort(host)
}

// Personal.AI order the ending
