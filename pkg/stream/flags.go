package stream

import "src.jrpc.sh/pkg/prog"

// ConfigFromFlags builds the TLS Config described by the global flags, or
// nil if no TLS flags were given.
func ConfigFromFlags(f *prog.Flags) *Config {
	if f.CACert == "" && f.BootstrapCACert == "" && f.Cert == "" && f.Key == "" {
		return nil
	}
	cfg := &Config{CACert: f.CACert, Cert: f.Cert, Key: f.Key}
	if f.BootstrapCACert != "" {
		cfg.CACert = f.BootstrapCACert
		cfg.Bootstrap = true
	}
	return cfg
}
