package tunnel

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Settings holds the connection parameters shared by every rendered
// config; only the target address changes between tests.
type Settings struct {
	UUID           string `yaml:"vless_uuid"`
	Port           int    `yaml:"vless_port"`
	ServerName     string `yaml:"server_name"`
	HostHeader     string `yaml:"host_header"`
	WSPath         string `yaml:"ws_path"`
	LocalSocksPort int    `yaml:"local_socks_port"`
}

// Validate rejects settings that would render an unusable config
func (s Settings) Validate() error {
	if len(s.UUID) < 30 {
		return fmt.Errorf("vless_uuid appears invalid (too short)")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid vless_port: %d", s.Port)
	}
	if s.LocalSocksPort < 1024 || s.LocalSocksPort > 65535 {
		return fmt.Errorf("invalid local_socks_port: %d (use 1024-65535)", s.LocalSocksPort)
	}
	if s.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	if s.HostHeader == "" {
		return fmt.Errorf("host_header is required")
	}
	if s.WSPath == "" {
		return fmt.Errorf("ws_path is required")
	}
	return nil
}

// RenderConfig rewrites the xray template for one target address. The
// template is third-party JSON; it is edited in place rather than
// round-tripped through our own structs so unknown fields survive
// untouched.
func RenderConfig(template []byte, settings Settings, address string) ([]byte, error) {
	if !gjson.ValidBytes(template) {
		return nil, fmt.Errorf("config template is not valid JSON")
	}
	if !gjson.GetBytes(template, "outbounds.0.settings.vnext.0").Exists() {
		return nil, fmt.Errorf("config template has no vnext outbound")
	}

	rendered := template
	var err error
	for _, set := range []struct {
		path  string
		value any
	}{
		{"outbounds.0.settings.vnext.0.address", address},
		{"outbounds.0.settings.vnext.0.port", settings.Port},
		{"outbounds.0.settings.vnext.0.users.0.id", settings.UUID},
		{"outbounds.0.streamSettings.tlsSettings.serverName", settings.ServerName},
		{"outbounds.0.streamSettings.wsSettings.path", settings.WSPath},
		{"outbounds.0.streamSettings.wsSettings.headers.Host", settings.HostHeader},
		{"inbounds.0.port", settings.LocalSocksPort},
	} {
		rendered, err = sjson.SetBytes(rendered, set.path, set.value)
		if err != nil {
			return nil, fmt.Errorf("could not set %s: %w", set.path, err)
		}
	}
	return rendered, nil
}
