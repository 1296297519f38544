// Package tunnel drives the downstream speed test over the best ranked
// addresses: it renders a per-address client config from a JSON template,
// frees and guards the local SOCKS port, runs the xray-core binary against
// the config, and measures latency and download throughput through the
// resulting proxy.
package tunnel
