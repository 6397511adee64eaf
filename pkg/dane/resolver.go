// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultTimeout = 5 * time.Second
	defaultDNSPort = "53"
	defaultDoTPort = "853"

	// maxHostnameLen is the longest presentation-format DNS name.
	maxHostnameLen = 253
)

// resolvConfPath is the system resolver configuration read when no server is
// given.
var resolvConfPath = "/etc/resolv.conf"

// Resolver looks up TLSA records. It is safe for concurrent use.
type Resolver struct {
	client    *dns.Client
	server    string
	requireAD bool
	logger    *slog.Logger
}

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg *ResolverConfig, logger *slog.Logger) (*Resolver, error) {
	if cfg == nil {
		return nil, ErrResolverConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &dns.Client{Net: "udp", Timeout: timeout}
	port := defaultDNSPort
	if cfg.UseTLS {
		client.Net = "tcp-tls"
		client.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
		port = defaultDoTPort
	}

	server, err := resolveServer(cfg.Server, port, !cfg.UseTLS)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		client:    client,
		server:    server,
		requireAD: !cfg.AllowUnauthenticated,
		logger:    logger.With("component", "dane_resolver", "server", server),
	}, nil
}

// Server returns the resolver address queries are sent to.
func (r *Resolver) Server() string {
	return r.server
}

// resolveServer adds the default port to server, or picks the system
// nameserver when server is empty. The port configured for the system
// resolver is honored for plain DNS only.
func resolveServer(server, port string, useSystemPort bool) (string, error) {
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			return net.JoinHostPort(server, port), nil
		}
		return server, nil
	}

	sys, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolverConfig, err)
	}
	return systemServer(sys, port, useSystemPort)
}

// systemServer picks the first nameserver of sys. Its configured port
// replaces port when useSystemPort is set.
func systemServer(sys *dns.ClientConfig, port string, useSystemPort bool) (string, error) {
	if len(sys.Servers) == 0 {
		return "", fmt.Errorf("%w: no nameservers in %s", ErrResolverConfig, resolvConfPath)
	}
	if useSystemPort && sys.Port != "" {
		port = sys.Port
	}
	return net.JoinHostPort(sys.Servers[0], port), nil
}

// LookupTLSA queries "_<port>._tcp.<hostname>." for TLSA records. Unless
// unauthenticated answers are allowed, the response must carry the DNSSEC AD
// flag. Records with undecodable association data are skipped.
func (r *Resolver) LookupTLSA(ctx context.Context, hostname string, port uint16) ([]*TLSARecord, error) {
	if err := validateName(hostname); err != nil {
		return nil, err
	}
	if port == 0 {
		return nil, ErrInvalidPort
	}

	qname := formatTLSAName(hostname, port)

	msg := new(dns.Msg)
	msg.SetQuestion(qname, dns.TypeTLSA)
	msg.SetEdns0(4096, true)
	msg.RecursionDesired = true

	resp, rtt, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDNSLookupFailed, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: rcode %s", ErrDNSLookupFailed, dns.RcodeToString[resp.Rcode])
	}
	if r.requireAD && !resp.AuthenticatedData {
		return nil, ErrDNSSECRequired
	}

	records := make([]*TLSARecord, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		tlsa, ok := rr.(*dns.TLSA)
		if !ok {
			continue
		}
		data, decodeErr := hex.DecodeString(tlsa.Certificate)
		if decodeErr != nil {
			r.logger.Debug("skipping TLSA record with malformed data", "name", qname)
			continue
		}
		records = append(records, &TLSARecord{
			Usage:        tlsa.Usage,
			Selector:     tlsa.Selector,
			MatchingType: tlsa.MatchingType,
			CertData:     data,
		})
	}

	r.logger.Debug("TLSA lookup complete",
		"name", qname, "records", len(records), "ad", resp.AuthenticatedData, "rtt", rtt)

	if len(records) == 0 {
		return nil, ErrNoTLSARecords
	}
	return records, nil
}

func validateName(hostname string) error {
	if hostname == "" || len(hostname) > maxHostnameLen || strings.ContainsRune(hostname, 0) {
		return ErrInvalidHostname
	}
	return nil
}

// formatTLSAName returns the absolute TLSA owner name for hostname and port.
func formatTLSAName(hostname string, port uint16) string {
	return fmt.Sprintf("_%d._tcp.%s", port, dns.Fqdn(hostname))
}
