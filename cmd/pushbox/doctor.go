package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pushbox/pushbox/internal/config"
	"github.com/pushbox/pushbox/internal/sync"
	"github.com/pushbox/pushbox/internal/utils"
)

const (
	statusOK   = "ok"
	statusWarn = "warn"
	statusFail = "fail"
)

// fixed slots keep the report order stable while checks run concurrently
const (
	slotRsync = iota
	slotSSH
	slotConfig
	slotSource
	slotProbe
	slotCount
)

type checkResult struct {
	name   string
	status string
	detail string
}

func init() {
	rootCmd.AddCommand(newDoctorCmd())
}

func newDoctorCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this machine can push: binaries, config, source dir",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), probe)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("source", "s", ".", "Local source directory to check")
	cmd.Flags().BoolVar(&probe, "probe", false, "attempt a live SSH connection to the target")

	return cmd
}

func runDoctor(ctx context.Context, out io.Writer, probe bool) error {
	cfg := configFromViper()
	cfgErr := cfg.Validate()

	// Each check owns exactly one slot, so no further coordination is needed.
	results := make([]*checkResult, slotCount)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		results[slotRsync] = checkBinary(egCtx, "rsync", "--version")
		return nil
	})

	eg.Go(func() error {
		results[slotSSH] = checkBinary(egCtx, "ssh", "-V")
		return nil
	})

	eg.Go(func() error {
		results[slotConfig] = checkConfigResult(cfg.Remote(), cfgErr)
		return nil
	})

	eg.Go(func() error {
		results[slotSource] = checkSource(cfg.SourceDir)
		return nil
	})

	if probe {
		eg.Go(func() error {
			if cfgErr != nil {
				results[slotProbe] = &checkResult{name: "probe", status: statusWarn, detail: "skipped, config invalid"}
				return nil
			}
			results[slotProbe] = probeTarget(egCtx, cfg)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		renderCheck(out, r)
		if r.status == statusFail {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

func checkBinary(ctx context.Context, name string, versionArg string) *checkResult {
	binPath, err := exec.LookPath(name)
	if err != nil {
		return &checkResult{name: name, status: statusFail, detail: "not found in PATH"}
	}

	detail := binPath
	// ssh -V reports on stderr, so take both streams
	if raw, err := exec.CommandContext(ctx, name, versionArg).CombinedOutput(); err == nil {
		if line, _, _ := strings.Cut(string(raw), "\n"); strings.TrimSpace(line) != "" {
			detail = strings.TrimSpace(line)
		}
	}
	return &checkResult{name: name, status: statusOK, detail: detail}
}

func checkConfigResult(remote string, cfgErr error) *checkResult {
	if cfgErr != nil {
		return &checkResult{name: "config", status: statusFail, detail: cfgErr.Error()}
	}
	return &checkResult{name: "config", status: statusOK, detail: remote}
}

func checkSource(sourceDir string) *checkResult {
	resolved, err := utils.ResolvePath(sourceDir)
	if err != nil {
		return &checkResult{name: "source", status: statusFail, detail: err.Error()}
	}
	if !utils.DirExists(resolved) {
		return &checkResult{name: "source", status: statusFail, detail: fmt.Sprintf("%s is not a directory", resolved)}
	}
	if !utils.IsReadable(resolved) {
		return &checkResult{name: "source", status: statusFail, detail: fmt.Sprintf("%s is not readable", resolved)}
	}
	return &checkResult{name: "source", status: statusOK, detail: resolved}
}

// probeTarget runs `ssh ... <target> true` with the same transport arguments
// a push would use. Exit 255 is ssh itself failing, anything else came from
// the remote side.
func probeTarget(ctx context.Context, cfg *config.Config) *checkResult {
	args := sync.NewTransport(cfg).Args()
	args = append(args, "-o", "ConnectTimeout=5", cfg.TargetHost, "true")

	err := exec.CommandContext(ctx, args[0], args[1:]...).Run()
	if err == nil {
		return &checkResult{name: "probe", status: statusOK, detail: cfg.Remote() + " reachable"}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == 255 {
			return &checkResult{name: "probe", status: statusFail, detail: fmt.Sprintf("ssh failed with exit code %d", code)}
		}
		return &checkResult{name: "probe", status: statusWarn, detail: fmt.Sprintf("connected, remote command exited %d", code)}
	}
	return &checkResult{name: "probe", status: statusFail, detail: err.Error()}
}

func renderCheck(out io.Writer, r *checkResult) {
	var label string
	switch r.status {
	case statusOK:
		label = green.Render(" OK ")
	case statusWarn:
		label = yellow.Render("WARN")
	default:
		label = red.Render("FAIL")
	}
	fmt.Fprintf(out, "[%s] %-7s %s\n", label, r.name, r.detail)
}
