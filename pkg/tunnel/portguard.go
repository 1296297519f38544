package tunnel

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/projectdiscovery/gologger"
	gopsutilnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// IsPortFree reports whether the local port can be bound
func IsPortFree(port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// FreePort kills whatever process is listening on the local port and
// waits for the bind to become available again. The proxy process from a
// previous aborted run is the usual holder.
func FreePort(port int) error {
	if IsPortFree(port) {
		return nil
	}

	connections, err := gopsutilnet.Connections("tcp")
	if err != nil {
		return fmt.Errorf("could not enumerate connections: %w", err)
	}

	killed := false
	for _, connection := range connections {
		if connection.Laddr.Port != uint32(port) || connection.Status != "LISTEN" || connection.Pid == 0 {
			continue
		}
		holder, err := process.NewProcess(connection.Pid)
		if err != nil {
			continue
		}
		name, _ := holder.Name()
		gologger.Warning().Msgf("killing process %d (%s) holding port %d", connection.Pid, name, port)
		if err := holder.Kill(); err != nil {
			gologger.Error().Msgf("could not kill process %d: %s", connection.Pid, err)
			continue
		}
		killed = true
	}

	if !killed {
		return fmt.Errorf("port %d is in use and no killable holder was found", port)
	}

	// the kernel needs a moment to release the listener
	for i := 0; i < 10; i++ {
		time.Sleep(200 * time.Millisecond)
		if IsPortFree(port) {
			return nil
		}
	}
	return fmt.Errorf("port %d still in use after killing its holder", port)
}
