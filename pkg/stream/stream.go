// Package stream opens byte streams and listening sockets from endpoint
// targets of the form TYPE:ARGS.
//
// Active targets, accepted by Dial:
//
//   - unix:PATH: a UNIX domain socket at PATH
//   - tcp:HOST:PORT: a TCP connection to HOST:PORT
//   - ssl:HOST:PORT: a TLS connection to HOST:PORT
//
// Passive targets, accepted by Listen, are the same with a "p" prefix
// (punix:, ptcp:, pssl:); ptcp: and pssl: accept a bare PORT to listen on
// all interfaces.
package stream

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
)

// Config keeps TLS material used by ssl: and pssl: targets. The zero value
// disables peer verification for dialing and refuses pssl: listening.
type Config struct {
	// CACert is a path to a PEM file with the CA certificates to verify
	// peers against. If empty, peer verification is disabled.
	CACert string
	// Bootstrap causes a missing CACert file to be created from the
	// certificate presented by the first peer dialed.
	Bootstrap bool
	// Cert and Key are paths to the certificate and private key presented
	// to peers. They are required for listening on pssl: targets.
	Cert, Key string
}

// Dial opens a connection to an active target, blocking until the connection
// is established or an error occurs.
func Dial(target string, cfg *Config) (net.Conn, error) {
	kind, addr, err := splitTarget(target)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "unix":
		return net.Dial("unix", addr)
	case "tcp":
		return net.Dial("tcp", addr)
	case "ssl":
		return dialTLS(addr, cfg)
	default:
		return nil, fmt.Errorf("unknown target type %q", kind)
	}
}

// Listen opens a listening socket on a passive target.
func Listen(target string, cfg *Config) (net.Listener, error) {
	kind, addr, err := splitTarget(target)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "punix":
		return net.Listen("unix", addr)
	case "ptcp":
		return net.Listen("tcp", listenAddr(addr))
	case "pssl":
		tlsCfg, err := cfg.serverConfig()
		if err != nil {
			return nil, err
		}
		return tls.Listen("tcp", listenAddr(addr), tlsCfg)
	default:
		return nil, fmt.Errorf("unknown target type %q", kind)
	}
}

func splitTarget(target string) (kind, addr string, err error) {
	kind, addr, ok := strings.Cut(target, ":")
	if !ok || kind == "" || addr == "" {
		return "", "", fmt.Errorf("target %q is not of the form TYPE:ARGS", target)
	}
	return kind, addr, nil
}

// listenAddr turns a bare port into an any-interface address.
func listenAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
