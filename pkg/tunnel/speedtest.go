package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

const (
	// DefaultLatencyURL should answer 204 with an empty body
	DefaultLatencyURL = "http://www.gstatic.com/generate_204"
	// DefaultDownloadURL serves a payload large enough to saturate the
	// download window
	DefaultDownloadURL = "https://speed.cloudflare.com/__down?bytes=10000000"
	// DefaultDownloadWindow bounds how long the download is sampled
	DefaultDownloadWindow = 5 * time.Second
	// DefaultRequestTimeout bounds each request end to end
	DefaultRequestTimeout = 20 * time.Second
)

// SpeedTester measures latency and download throughput through a local
// SOCKS5 proxy.
type SpeedTester struct {
	SocksAddr      string
	LatencyURL     string
	DownloadURL    string
	DownloadWindow time.Duration
	Timeout        time.Duration
}

// NewSpeedTester returns a SpeedTester against the local SOCKS port with
// default endpoints.
func NewSpeedTester(socksPort int) *SpeedTester {
	return &SpeedTester{
		SocksAddr:      fmt.Sprintf("127.0.0.1:%d", socksPort),
		LatencyURL:     DefaultLatencyURL,
		DownloadURL:    DefaultDownloadURL,
		DownloadWindow: DefaultDownloadWindow,
		Timeout:        DefaultRequestTimeout,
	}
}

// Run measures one address already fronted by the running proxy: a
// latency request that must answer 204, then a download sampled for
// DownloadWindow. Both failures are returned as errors; the caller
// records the address as unresponsive.
func (t *SpeedTester) Run(ctx context.Context, address string, port int) (types.SpeedResult, error) {
	result := types.SpeedResult{Address: address, Port: port}

	client, err := t.client()
	if err != nil {
		return result, err
	}
	defer client.CloseIdleConnections()

	latency, err := t.measureLatency(ctx, client)
	if err != nil {
		return result, err
	}
	result.LatencyMS = float64(latency) / float64(time.Millisecond)
	result.LatencyRate = fmt.Sprintf("%.0f ms", result.LatencyMS)

	rate, err := t.measureDownload(ctx, client)
	if err != nil {
		return result, err
	}
	result.DownloadMBps = rate
	result.DownloadRate = fmt.Sprintf("%.2f MB/s", rate)

	return result, nil
}

func (t *SpeedTester) client() (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", t.SocksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("could not build socks dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks dialer does not support contexts")
	}

	return &http.Client{
		Timeout: t.Timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return contextDialer.DialContext(ctx, network, addr)
			},
		},
	}, nil
}

func (t *SpeedTester) measureLatency(ctx context.Context, client *http.Client) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.LatencyURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("latency request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusNoContent {
		return 0, fmt.Errorf("latency endpoint returned %d, want 204", resp.StatusCode)
	}
	return elapsed, nil
}

// measureDownload reads the payload for at most DownloadWindow and
// reports the observed rate in MB/s
func (t *SpeedTester) measureDownload(ctx context.Context, client *http.Client) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.DownloadURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	var downloaded int64
	buf := make([]byte, 8192)
	for {
		n, err := resp.Body.Read(buf)
		downloaded += int64(n)
		if time.Since(start) > t.DownloadWindow {
			break
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("download read failed: %w", err)
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}

	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 || downloaded == 0 {
		return 0, fmt.Errorf("no data downloaded")
	}
	return float64(downloaded) / 1024 / 1024 / elapsed, nil
}
