package main

import (
	"errors"
	"net"
	"strings"
	"sync"
)

// newListener listens on addr. A host resolving to several addresses
// (localhost with ipv4 and ipv6) gets one listener per address.
func newListener(addr string) (net.Listener, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return net.Listen("tcp", addr)
	}
	ips, err := resolveHost(host)
	if err != nil {
		return nil, err
	}
	if len(ips) <= 1 {
		return net.Listen("tcp", addr)
	}
	ls := make([]net.Listener, 0, len(ips))
	for _, ip := range ips {
		l, err := net.Listen("tcp", net.JoinHostPort(ip.String(), port))
		if err != nil {
			for _, l := range ls {
				l.Close()
			}
			return nil, err
		}
		ls = append(ls, l)
	}
	return newFanInListener(ls), nil
}

func resolveHost(host string) ([]net.IP, error) {
	if host != "localhost" {
		return net.LookupIP(host)
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, a := range addrs {
		if n, ok := a.(*net.IPNet); ok && n.IP.IsLoopback() {
			ips = append(ips, n.IP)
		}
	}
	return ips, nil
}

type accepted struct {
	conn net.Conn
	err  error
}

// fanInListener accepts from all of its listeners
type fanInListener struct {
	listeners []net.Listener
	ch        chan accepted
	done      chan struct{}
	closeOnce sync.Once
}

func newFanInListener(ls []net.Listener) *fanInListener {
	f := &fanInListener{
		listeners: ls,
		ch:        make(chan accepted),
		done:      make(chan struct{}),
	}
	for _, l := range ls {
		go f.acceptLoop(l)
	}
	return f
}

func (f *fanInListener) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		select {
		case f.ch <- accepted{conn: conn, err: err}:
		case <-f.done:
			if conn != nil {
				conn.Close()
			}
			return
		}
		if errors.Is(err, net.ErrClosed) {
			return
		}
	}
}

func (f *fanInListener) Accept() (net.Conn, error) {
	select {
	case a := <-f.ch:
		return a.conn, a.err
	case <-f.done:
		return nil, net.ErrClosed
	}
}

func (f *fanInListener) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		for _, l := range f.listeners {
			l.Close()
		}
	})
	return nil
}

func (f *fanInListener) Addr() net.Addr {
	return f.listeners[0].Addr()
}

func printListener(lis net.Listener) string {
	f, ok := lis.(*fanInListener)
	if !ok {
		return lis.Addr().String()
	}
	addrs := make([]string, 0, len(f.listeners))
	for _, l := range f.listeners {
		addrs = append(addrs, l.Addr().String())
	}
	return strings.Join(addrs, ",")
}
