package tunnel

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/projectdiscovery/gologger"
	fileutil "github.com/projectdiscovery/utils/file"
)

const readinessTimeout = 5 * time.Second

// Xray is one running xray-core process bound to a rendered config
type Xray struct {
	cmd        *exec.Cmd
	configPath string
}

// StartXray writes config to a temp file, starts the binary against it
// and waits until the local SOCKS port accepts connections. The caller
// must Stop the returned process.
func StartXray(ctx context.Context, binary string, config []byte, socksPort int) (*Xray, error) {
	if !fileutil.FileExists(binary) {
		return nil, fmt.Errorf("xray binary not found at %s", binary)
	}

	configPath, err := fileutil.GetTempFileName()
	if err != nil {
		return nil, fmt.Errorf("could not create temp config: %w", err)
	}
	if err := os.WriteFile(configPath, config, 0600); err != nil {
		return nil, fmt.Errorf("could not write temp config: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, "-config", configPath)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(configPath)
		return nil, fmt.Errorf("could not start xray: %w", err)
	}

	x := &Xray{cmd: cmd, configPath: configPath}
	if err := waitForSocks(ctx, socksPort); err != nil {
		x.Stop()
		return nil, fmt.Errorf("xray did not come up on port %d: %w", socksPort, err)
	}
	return x, nil
}

// Stop kills the process and removes its temp config
func (x *Xray) Stop() {
	if x.cmd != nil && x.cmd.Process != nil {
		if err := x.cmd.Process.Kill(); err != nil {
			gologger.Verbose().Msgf("could not kill xray process: %s", err)
		}
		_ = x.cmd.Wait()
	}
	if x.configPath != "" {
		_ = os.Remove(x.configPath)
	}
}

// waitForSocks polls the local SOCKS port until it accepts a connection
func waitForSocks(ctx context.Context, port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(readinessTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}

		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
	}
	return fmt.Errorf("not listening after %s", readinessTimeout)
}
