package app

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/SpacksD/Printer-connect/app/config"
	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"lol.mleku.dev/chk"
)

// tlsConfig builds the server's crypto/tls.Config from cfg, per spec §4.2:
// TLS >= 1.2, a configured certificate/key pair, and mutual TLS whenever a
// client CA bundle is configured.
func tlsConfig(cfg *config.C) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, apperr.New(apperr.Internal, "SERVER_ERROR", "security.certfile/keyfile must be set when TLS is enabled")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if chk.E(err) {
		return nil, apperr.Wrap(apperr.Internal, "SERVER_ERROR", "failed to load TLS certificate", err)
	}
	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.CAFile != "" {
		caBytes, readErr := os.ReadFile(cfg.CAFile)
		if chk.E(readErr) {
			return nil, apperr.Wrap(apperr.Internal, "SERVER_ERROR", "failed to read TLS CA bundle", readErr)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, apperr.New(apperr.Internal, "SERVER_ERROR", "TLS CA bundle contains no usable certificates")
		}
		tc.ClientCAs = pool
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tc, nil
}

// listenAddr formats cfg.Listen/cfg.Port as a dial address.
func listenAddr(cfg *config.C) string {
	return fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port)
}

// tlsListen opens a TLS-wrapped TCP listener at addr with tc, per spec §4.2.
func tlsListen(addr string, tc *tls.Config) (net.Listener, error) {
	ln, err := tls.Listen("tcp", addr, tc)
	if chk.E(err) {
		return nil, apperr.Wrap(apperr.Internal, "SERVER_ERROR", "failed to bind TLS listener", err)
	}
	return ln, nil
}
