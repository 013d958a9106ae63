package stream

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"

	"src.jrpc.sh/pkg/logutil"
)

var logger = logutil.GetLogger("[stream] ")

func dialTLS(addr string, cfg *Config) (net.Conn, error) {
	tlsCfg, bootstrap, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return nil, err
	}
	if bootstrap {
		if err := saveBootstrapCA(cfg.CACert, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("cannot bootstrap CA certificate: %v", err)
		}
	}
	return conn, nil
}

// clientConfig builds the TLS configuration for dialing. The boolean is true
// if the peer's certificate should be saved to cfg.CACert after connecting.
func (cfg *Config) clientConfig() (*tls.Config, bool, error) {
	tlsCfg := &tls.Config{}
	if cfg == nil {
		tlsCfg.InsecureSkipVerify = true
		return tlsCfg, false, nil
	}
	if err := cfg.loadKeyPair(tlsCfg); err != nil {
		return nil, false, err
	}
	if cfg.CACert == "" {
		tlsCfg.InsecureSkipVerify = true
		return tlsCfg, false, nil
	}
	pemData, err := os.ReadFile(cfg.CACert)
	if err != nil {
		if os.IsNotExist(err) && cfg.Bootstrap {
			// Trust and record whatever the first peer presents.
			tlsCfg.InsecureSkipVerify = true
			return tlsCfg, true, nil
		}
		return nil, false, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, false, fmt.Errorf("no certificates found in %s", cfg.CACert)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, false, nil
}

func (cfg *Config) serverConfig() (*tls.Config, error) {
	if cfg == nil || cfg.Cert == "" || cfg.Key == "" {
		return nil, errors.New("pssl: target requires -cert and -key")
	}
	tlsCfg := &tls.Config{}
	if err := cfg.loadKeyPair(tlsCfg); err != nil {
		return nil, err
	}
	return tlsCfg, nil
}

func (cfg *Config) loadKeyPair(tlsCfg *tls.Config) error {
	if cfg.Cert == "" && cfg.Key == "" {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
	if err != nil {
		return err
	}
	tlsCfg.Certificates = []tls.Certificate{cert}
	return nil
}

// saveBootstrapCA writes the last certificate of the peer's chain, which is
// the closest it presents to a CA certificate, to fname.
func saveBootstrapCA(fname string, conn *tls.Conn) error {
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return errors.New("peer presented no certificate")
	}
	ca := certs[len(certs)-1]
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.Raw})
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return err
	}
	logger.Printf("bootstrapped CA certificate from %s into %s", conn.RemoteAddr(), fname)
	return nil
}
