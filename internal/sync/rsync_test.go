package sync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pushbox/pushbox/internal/config"
)

func builderConfig() *config.Config {
	return &config.Config{
		SourceDir:  "/home/alice/project",
		TargetHost: "deploy@build.example.com",
		TargetPort: 2222,
		TargetDir:  "/srv/project",
		SourceMode: config.SourceModeContents,
	}
}

func TestCommandSource_SeparatorPolicy(t *testing.T) {
	tests := []struct {
		name      string
		sourceDir string
		mode      config.SourceMode
		want      string
	}{
		{
			name:      "contents mode appends separator",
			sourceDir: "/home/alice/project",
			mode:      config.SourceModeContents,
			want:      "/home/alice/project/",
		},
		{
			name:      "contents mode never doubles the separator",
			sourceDir: "/home/alice/project/",
			mode:      config.SourceModeContents,
			want:      "/home/alice/project/",
		},
		{
			name:      "directory mode strips the separator",
			sourceDir: "/home/alice/project/",
			mode:      config.SourceModeDirectory,
			want:      "/home/alice/project",
		},
		{
			name:      "directory mode leaves a bare path alone",
			sourceDir: "/home/alice/project",
			mode:      config.SourceModeDirectory,
			want:      "/home/alice/project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := builderConfig()
			cfg.SourceDir = tt.sourceDir
			cfg.SourceMode = tt.mode

			cmd := NewCommand(cfg, NewTransport(cfg), nil)
			assert.Equal(t, tt.want, cmd.Source())
		})
	}
}

func TestCommandArgs_Fixed(t *testing.T) {
	cfg := builderConfig()
	cmd := NewCommand(cfg, NewTransport(cfg), nil)

	assert.Equal(t, []string{
		"-a", "-v", "--stats",
		"-e", "ssh -p 2222 -o BatchMode=yes",
		"/home/alice/project/",
		"deploy@build.example.com:/srv/project",
	}, cmd.Args())
}

func TestCommandArgs_OneExcludePerPattern(t *testing.T) {
	cfg := builderConfig()
	cmd := NewCommand(cfg, NewTransport(cfg), []string{"target/", "*.log"})

	args := cmd.Args()
	var excludes []string
	for i, arg := range args {
		if arg == "--exclude" {
			excludes = append(excludes, args[i+1])
		}
	}
	assert.Equal(t, []string{"target/", "*.log"}, excludes)
}

func TestCommandArgs_DryRunAndMirror(t *testing.T) {
	cfg := builderConfig()
	cfg.DryRun = true
	cfg.Mirror = true

	args := NewCommand(cfg, NewTransport(cfg), nil).Args()
	assert.Contains(t, args, "-n")
	assert.Contains(t, args, "--delete")
}

func TestCommandString_QuotesForReplay(t *testing.T) {
	cfg := builderConfig()
	cmd := NewCommand(cfg, NewTransport(cfg), []string{"*.log"})

	rendered := cmd.String()
	assert.True(t, strings.HasPrefix(rendered, "rsync -a -v --stats"), rendered)
	assert.Contains(t, rendered, "--exclude '*.log'")
	assert.Contains(t, rendered, "-e 'ssh -p 2222 -o BatchMode=yes'")
	assert.Contains(t, rendered, "deploy@build.example.com:/srv/project")
}

func TestTransportArgs(t *testing.T) {
	cfg := builderConfig()
	cfg.IdentityFile = "/home/alice/.ssh/deploy_key"
	cfg.SSHOptions = []string{"Compression=yes", "ConnectTimeout=5"}

	transport := NewTransport(cfg)
	assert.Equal(t, []string{
		"ssh", "-p", "2222",
		"-o", "BatchMode=yes",
		"-i", "/home/alice/.ssh/deploy_key",
		"-o", "Compression=yes",
		"-o", "ConnectTimeout=5",
	}, transport.Args())
}

func TestTransportCommand_QuotesSpaces(t *testing.T) {
	transport := &Transport{Port: 22, IdentityFile: "/home/a b/key"}
	assert.Equal(t, `ssh -p 22 -o BatchMode=yes -i "/home/a b/key"`, transport.Command())
}

func TestClassifyExitCode(t *testing.T) {
	tests := []struct {
		code int
		want FailureClass
	}{
		{0, FailureNone},
		{1, FailureConfig},
		{2, FailureConfig},
		{3, FailureConfig},
		{4, FailureConfig},
		{5, FailureTransport},
		{10, FailureTransport},
		{30, FailureTransport},
		{35, FailureTransport},
		{255, FailureTransport},
		{11, FailureTransfer},
		{12, FailureTransfer},
		{23, FailureTransfer},
		{24, FailureTransfer},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyExitCode(tt.code), "code %d", tt.code)
	}
}
