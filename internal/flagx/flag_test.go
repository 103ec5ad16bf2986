package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "equals form",
			args:         []string{"--config=alt.json", "-d", "postgres://x"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags and positionals ignored",
			args:         []string{"register", "-x", "1", "--y=2"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag followed by another flag keeps no value",
			args:         []string{"-c", "-s", "secret"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "trailing flag without value",
			args:         []string{"-d"},
			allowedFlags: []string{"-d"},
			want:         []string{"-d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFileFlags(t *testing.T) {
	assert.Equal(t, "a.json", ConfigFileFlags([]string{"-c", "a.json", "-d", "dsn"}))
	assert.Equal(t, "b.json", ConfigFileFlags([]string{"-config=b.json"}))
	assert.Equal(t, "", ConfigFileFlags([]string{"-d", "dsn"}))
}

func TestEnvFileFlags(t *testing.T) {
	assert.Equal(t, "prod.env", EnvFileFlags([]string{"-env-file", "prod.env", "-c", "x.json"}))
	assert.Equal(t, "", EnvFileFlags(nil))
}

func TestStripArgs(t *testing.T) {
	flags := []string{"-d", "-s", "-c", "-env-file"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "subcommand after flags",
			args: []string{"-d", "sqlite://a.db", "register", "a@b.com"},
			want: []string{"register", "a@b.com"},
		},
		{
			name: "equals form and interleaving",
			args: []string{"login", "-s=secret", "a@b.com", "-env-file", ".env.test"},
			want: []string{"login", "a@b.com"},
		},
		{
			name: "unknown flags kept",
			args: []string{"show", "-x", "1"},
			want: []string{"show", "-x", "1"},
		},
		{
			name: "flag without value",
			args: []string{"-c", "-d", "x", "verify"},
			want: []string{"verify"},
		},
		{
			name: "empty",
			args: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripArgs(tt.args, flags))
		})
	}
}
