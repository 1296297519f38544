package discovery

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/mapcidr"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// RangeSourceLabel marks candidates sampled out of CIDR ranges
const RangeSourceLabel = "CF_RANGE"

// Stride thresholds: small ranges are probed exhaustively, larger ones
// are thinned so a /13 does not turn into half a million probes.
const (
	strideFullLimit   = 256
	strideMediumLimit = 4096
	strideMedium      = 4
	strideLarge       = 64
)

// LoadRanges reads a ranges file: one CIDR per line, blank lines and
// #-comments skipped.
func LoadRanges(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read ranges file: %w", err)
	}
	defer file.Close()

	var ranges []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ranges = append(ranges, line)
	}
	return ranges, scanner.Err()
}

// SampleRanges expands each CIDR and stride-samples it into candidates:
// every usable address for ranges up to 256 hosts, every 4th up to 4096,
// every 64th beyond that. Invalid ranges are logged and skipped.
func SampleRanges(ranges []string) []types.Candidate {
	now := time.Now()
	var candidates []types.Candidate

	for _, cidr := range ranges {
		sampled, err := sampleCIDR(cidr)
		if err != nil {
			gologger.Warning().Msgf("skipping invalid range %s: %s", cidr, err)
			continue
		}
		gologger.Verbose().Msgf("range %s: %d addresses sampled", cidr, len(sampled))
		for _, address := range sampled {
			candidates = append(candidates, types.Candidate{
				Address:      address,
				SourceLabel:  RangeSourceLabel,
				Provider:     "edge_ranges",
				DiscoveredAt: now,
			})
		}
	}

	gologger.Info().Msgf("sampled %d candidates from %d ranges", len(candidates), len(ranges))
	return candidates
}

func sampleCIDR(cidr string) ([]string, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	expanded, err := mapcidr.IPAddresses(cidr)
	if err != nil {
		return nil, err
	}

	usable := make([]string, 0, len(expanded))
	for _, raw := range expanded {
		ip := net.ParseIP(raw)
		if ip == nil || isNetworkOrBroadcast(ip, network) {
			continue
		}
		usable = append(usable, raw)
	}

	stride := 1
	switch {
	case len(usable) <= strideFullLimit:
	case len(usable) <= strideMediumLimit:
		stride = strideMedium
	default:
		stride = strideLarge
	}

	sampled := make([]string, 0, len(usable)/stride+1)
	for i := 0; i < len(usable); i += stride {
		sampled = append(sampled, usable[i])
	}
	return sampled, nil
}

// isNetworkOrBroadcast reports whether ip is the network address or, for
// IPv4, the broadcast address of network. IPv6 multicast is treated the
// same way.
func isNetworkOrBroadcast(ip net.IP, network *net.IPNet) bool {
	if ip.Equal(network.IP) {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		broadcast := make(net.IP, len(network.IP))
		copy(broadcast, network.IP)
		for i := range broadcast {
			broadcast[i] |= ^network.Mask[i]
		}
		return ip.Equal(broadcast)
	}

	return ip.IsMulticast()
}
