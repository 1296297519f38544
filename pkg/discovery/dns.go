package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/miekg/dns"
	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/gologger"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

const (
	// DefaultResolver answers provider lookups when none is configured
	DefaultResolver = "1.1.1.1:53"
	// DefaultCacheTTL keeps resolved provider addresses across repeated
	// scans inside one session
	DefaultCacheTTL = 15 * time.Minute
)

// DNSSource resolves a provider hostname list into candidates. Each
// provider maps to an operator label carried on every address it yields.
// Lookups are cached with expiration so back-to-back scans do not re-query
// the resolver.
type DNSSource struct {
	Providers map[string]string
	Resolver  string
	client    *dns.Client
	cache     gcache.Cache[string, []string]
}

// NewDNSSource builds a DNSSource over providers (hostname -> operator
// label), using resolver for lookups and caching answers for ttl.
func NewDNSSource(providers map[string]string, resolver string, ttl time.Duration) *DNSSource {
	if resolver == "" {
		resolver = DefaultResolver
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DNSSource{
		Providers: providers,
		Resolver:  resolver,
		client:    &dns.Client{Timeout: 5 * time.Second},
		cache: gcache.New[string, []string](256).
			LRU().
			Expiration(ttl).
			Build(),
	}
}

// LoadProviders reads a providers file: a JSON object mapping provider
// hostnames to operator labels.
func LoadProviders(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read providers file: %w", err)
	}
	providers := make(map[string]string)
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("could not parse providers file: %w", err)
	}
	return providers, nil
}

// Collect resolves every provider and returns one candidate per resolved
// address. Per-provider failures are logged and skipped; only ctx
// cancellation aborts the collection.
func (s *DNSSource) Collect(ctx context.Context) ([]types.Candidate, error) {
	now := time.Now()
	var candidates []types.Candidate

	for host, operator := range s.Providers {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		addresses, err := s.resolve(ctx, host)
		if err != nil {
			gologger.Warning().Msgf("could not resolve provider %s: %s", host, err)
			continue
		}
		for _, address := range addresses {
			candidates = append(candidates, types.Candidate{
				Address:      address,
				SourceLabel:  operator,
				Provider:     providerDomain(host),
				DiscoveredAt: now,
			})
		}
	}

	gologger.Info().Msgf("collected %d candidates from %d providers", len(candidates), len(s.Providers))
	return candidates, nil
}

func (s *DNSSource) resolve(ctx context.Context, host string) ([]string, error) {
	if s.cache.Has(host) {
		if cached, err := s.cache.Get(host); err == nil {
			return cached, nil
		}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	resp, _, err := s.client.ExchangeContext(ctx, msg, s.Resolver)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("resolver returned %s", dns.RcodeToString[resp.Rcode])
	}

	addresses := extractA(resp)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no A records for %s", host)
	}

	_ = s.cache.Set(host, addresses)
	return addresses, nil
}

// extractA pulls the A-record addresses out of a DNS response
func extractA(resp *dns.Msg) []string {
	var addresses []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addresses = append(addresses, a.A.String())
		}
	}
	return addresses
}

// providerDomain strips the host label, keeping the registrable part the
// provider is known by
func providerDomain(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] == '.' {
			return host[i+1:]
		}
	}
	return host
}
