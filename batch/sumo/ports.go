package sumo

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// DefaultPortBase is the first control port handed out.
const DefaultPortBase = 8813

// PortPool hands out control ports from [base, base+n) exclusively, so concurrently
// running engines never listen on the same port.
type PortPool struct {
	ports chan int
}

// NewPortPool creates a pool of n ports starting at base.
func NewPortPool(base, n int) (*PortPool, error) {
	if n < 1 {
		return nil, fmt.Errorf("port pool size %d: must be positive", n)
	}
	if base < 1 || base+n-1 > 65535 {
		return nil, fmt.Errorf("port range %d..%d outside 1..65535", base, base+n-1)
	}
	p := &PortPool{ports: make(chan int, n)}
	for i := 0; i < n; i++ {
		p.ports <- base + i
	}
	return p, nil
}

// Acquire blocks until a port is free or ctx is done.
func (p *PortPool) Acquire(ctx context.Context) (int, error) {
	select {
	case port := <-p.ports:
		return port, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("waiting for control port: %w", ctx.Err())
	}
}

// Release returns a port to the pool.
func (p *PortPool) Release(port int) {
	p.ports <- port
}

// Free reports how many ports are currently available.
func (p *PortPool) Free() int {
	return len(p.ports)
}

func controlAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
