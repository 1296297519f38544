package tunnel

import (
	"testing"

	"github.com/tidwall/gjson"
)

const template = `{
  "log": {"loglevel": "warning"},
  "inbounds": [{"port": 10808, "protocol": "socks"}],
  "outbounds": [{
    "protocol": "vless",
    "settings": {"vnext": [{"address": "PLACEHOLDER", "port": 443, "users": [{"id": "PLACEHOLDER", "encryption": "none"}]}]},
    "streamSettings": {
      "network": "ws",
      "security": "tls",
      "tlsSettings": {"serverName": "PLACEHOLDER"},
      "wsSettings": {"path": "PLACEHOLDER", "headers": {"Host": "PLACEHOLDER"}}
    }
  }]
}`

func testSettings() Settings {
	return Settings{
		UUID:           "9ba61d45-3a5c-4a7a-9d13-c0ffee000001",
		Port:           443,
		ServerName:     "edge.example.com",
		HostHeader:     "edge.example.com",
		WSPath:         "/ws",
		LocalSocksPort: 1080,
	}
}

func TestRenderConfig(t *testing.T) {
	rendered, err := RenderConfig([]byte(template), testSettings(), "104.16.1.1")
	if err != nil {
		t.Fatalf("RenderConfig() error = %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{path: "outbounds.0.settings.vnext.0.address", want: "104.16.1.1"},
		{path: "outbounds.0.settings.vnext.0.port", want: "443"},
		{path: "outbounds.0.settings.vnext.0.users.0.id", want: "9ba61d45-3a5c-4a7a-9d13-c0ffee000001"},
		{path: "outbounds.0.streamSettings.tlsSettings.serverName", want: "edge.example.com"},
		{path: "outbounds.0.streamSettings.wsSettings.path", want: "/ws"},
		{path: "outbounds.0.streamSettings.wsSettings.headers.Host", want: "edge.example.com"},
		{path: "inbounds.0.port", want: "1080"},
	}
	for _, tt := range tests {
		if got := gjson.GetBytes(rendered, tt.path).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
		}
	}

	// fields we do not manage must survive the rewrite
	if got := gjson.GetBytes(rendered, "log.loglevel").String(); got != "warning" {
		t.Errorf("log.loglevel = %q, template fields must be preserved", got)
	}
	if got := gjson.GetBytes(rendered, "outbounds.0.settings.vnext.0.users.0.encryption").String(); got != "none" {
		t.Errorf("users.0.encryption = %q, template fields must be preserved", got)
	}
}

func TestRenderConfigRejectsBadTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "not JSON", template: "{nope"},
		{name: "no vnext outbound", template: `{"outbounds": [{"protocol": "freedom"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RenderConfig([]byte(tt.template), testSettings(), "104.16.1.1"); err == nil {
				t.Error("RenderConfig() should reject the template")
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "valid", mutate: func(s *Settings) {}},
		{name: "short uuid", mutate: func(s *Settings) { s.UUID = "abc" }, wantErr: true},
		{name: "port out of range", mutate: func(s *Settings) { s.Port = 70000 }, wantErr: true},
		{name: "privileged socks port", mutate: func(s *Settings) { s.LocalSocksPort = 80 }, wantErr: true},
		{name: "missing server name", mutate: func(s *Settings) { s.ServerName = "" }, wantErr: true},
		{name: "missing ws path", mutate: func(s *Settings) { s.WSPath = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(&settings)
			if err := settings.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
