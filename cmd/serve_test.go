package cmd

import "testing"

func TestListenAddr(t *testing.T) {
	cases := []struct {
		name    string
		config  *Config
		flagged string
		want    string
	}{
		{
			name:   "config value",
			config: &Config{Server: &ServerConfig{Listen: ":9090"}},
			want:   ":9090",
		},
		{
			name:    "flag overrides config",
			config:  &Config{Server: &ServerConfig{Listen: ":9090"}},
			flagged: ":7070",
			want:    ":7070",
		},
		{
			name:   "no server section",
			config: &Config{},
			want:   ":8080",
		},
		{
			name: "nil config",
			want: ":8080",
		},
		{
			name:   "empty listen value",
			config: &Config{Server: &ServerConfig{}},
			want:   ":8080",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := listenAddr(tc.config, tc.flagged); got != tc.want {
				t.Fatalf("listenAddr() = %q, want %q", got, tc.want)
			}
		})
	}
}
