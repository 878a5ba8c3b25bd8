// Package sync performs the one-shot push of a local project tree to a
// remote host by driving an external rsync over SSH. One invocation is one
// attempt: the runner walks its stages in order, stops at the first failure,
// and surfaces rsync's own exit code untouched.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pushbox/pushbox/internal/config"
	"github.com/pushbox/pushbox/internal/journal"
	"github.com/pushbox/pushbox/internal/project"
)

// killGracePeriod is how long rsync gets between SIGTERM and SIGKILL when
// the run context is canceled.
const killGracePeriod = 3 * time.Second

// RunOpts are per-run knobs that are not part of the push configuration.
type RunOpts struct {
	// SkipScan disables the preflight source walk.
	SkipScan bool
}

// Result describes one finished push attempt, successful or not.
type Result struct {
	RunID    string
	ExitCode int
	Stats    *Stats
	Scan     *ScanResult
	Duration time.Duration
	Command  string
}

// Runner performs one push for a validated config. It owns the stage
// sequence; the heavy lifting stays with rsync.
type Runner struct {
	cfg     *config.Config
	project *project.Project
	journal *journal.Journal

	rsyncPath string
	stdout    io.Writer
	stderr    io.Writer
	logSink   io.Writer
}

// NewRunner creates a Runner. The journal may be nil, in which case runs are
// not recorded.
func NewRunner(cfg *config.Config, proj *project.Project, jrnl *journal.Journal) *Runner {
	return &Runner{
		cfg:       cfg,
		project:   proj,
		journal:   jrnl,
		rsyncPath: rsyncBin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
}

// SetStdout redirects the pass-through stream, default os.Stdout.
func (r *Runner) SetStdout(w io.Writer) *Runner {
	r.stdout = w
	return r
}

// SetStderr redirects the pass-through error stream, default os.Stderr.
func (r *Runner) SetStderr(w io.Writer) *Runner {
	r.stderr = w
	return r
}

// SetLogSink tees everything rsync prints into w, typically the run log.
func (r *Runner) SetLogSink(w io.Writer) *Runner {
	r.logSink = w
	return r
}

// SetRsyncPath overrides the rsync binary, default "rsync" from PATH.
func (r *Runner) SetRsyncPath(path string) *Runner {
	r.rsyncPath = path
	return r
}

// Run performs exactly one push attempt. When rsync ran and failed, the
// returned error is an *ExitError carrying rsync's exit code; any other
// error means the push stopped before touching the network.
func (r *Runner) Run(ctx context.Context, opts RunOpts) (*Result, error) {
	runID := uuid.NewString()
	startedAt := time.Now()

	slog.Info("push", "run", runID, "source", r.cfg.SourceDir, "target", r.cfg.Remote(), "dry_run", r.cfg.DryRun)

	// one push per project tree at a time
	if err := r.project.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.project.Unlock(); err != nil {
			slog.Warn("failed to release project lock", "error", err)
		}
	}()

	// effective exclusion rules
	rules := NewIgnoreList(r.project, r.cfg.Exclude)
	rules.Load()

	// preflight scan
	var scan *ScanResult
	if !opts.SkipScan {
		var err error
		scan, err = Scan(ctx, r.cfg.SourceDir, rules)
		if err != nil {
			return nil, err
		}
		slog.Info("scan", "files", scan.Files, "size", humanize.Bytes(uint64(scan.Bytes)))
	}

	// transport and argument vector
	transport := NewTransport(r.cfg)
	command := NewCommand(r.cfg, transport, rules.Patterns())

	// resolve the binary before echoing anything
	binPath, err := exec.LookPath(r.rsyncPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRsyncNotFound, r.rsyncPath)
	}

	outSink := r.stdout
	errSink := r.stderr
	if r.logSink != nil {
		outSink = io.MultiWriter(r.stdout, r.logSink)
		errSink = io.MultiWriter(r.stderr, r.logSink)
	}
	var captured bytes.Buffer
	outSink = io.MultiWriter(outSink, &captured)

	// echo the resolved command, then hand the stream to rsync untouched
	fmt.Fprintln(outSink, "+ "+command.String())

	proc := exec.CommandContext(ctx, binPath, command.Args()...)
	proc.Stdin = nil
	proc.Stdout = outSink
	proc.Stderr = errSink
	proc.Cancel = func() error {
		return proc.Process.Signal(syscall.SIGTERM)
	}
	proc.WaitDelay = killGracePeriod

	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start rsync: %w", err)
	}
	slog.Debug("rsync started", "run", runID, "pid", proc.Process.Pid)

	// one blocking attempt, no retry
	waitErr := proc.Wait()
	exitCode := proc.ProcessState.ExitCode()
	duration := time.Since(startedAt)
	stats := ParseStats(&captured)

	result := &Result{
		RunID:    runID,
		ExitCode: exitCode,
		Stats:    stats,
		Scan:     scan,
		Duration: duration,
		Command:  command.String(),
	}

	if exitCode < 0 {
		// rsync died to a signal rather than exiting
		r.record(result, startedAt, journal.StatusFailed)
		if err := ctx.Err(); err != nil {
			slog.Info("push interrupted", "run", runID)
			return result, err
		}
		return result, fmt.Errorf("rsync terminated by signal: %w", waitErr)
	}

	if exitCode != 0 {
		class := ClassifyExitCode(exitCode)
		r.record(result, startedAt, journal.StatusFailed)
		slog.Error("push failed", "run", runID, "exit_code", exitCode, "class", class)
		return result, &ExitError{Code: exitCode, Class: class}
	}

	status := journal.StatusCompleted
	if r.cfg.DryRun {
		status = journal.StatusDryRun
	}
	r.record(result, startedAt, status)

	slog.Info("push complete",
		"run", runID,
		"files", stats.FilesTransferred,
		"sent", humanize.Bytes(uint64(stats.BytesSent)),
		"duration", duration.Round(time.Millisecond))
	return result, nil
}

// record writes the run to the journal. Journal failures are logged, never
// allowed to fail the push itself.
func (r *Runner) record(res *Result, startedAt time.Time, status journal.Status) {
	if r.journal == nil {
		return
	}

	run := &journal.Run{
		ID:               res.RunID,
		StartedAt:        startedAt,
		Duration:         res.Duration,
		Status:           status,
		ExitCode:         res.ExitCode,
		Source:           r.cfg.SourceDir,
		Target:           r.cfg.Remote(),
		FilesTransferred: res.Stats.FilesTransferred,
		FilesTotal:       res.Stats.FilesTotal,
		BytesSent:        res.Stats.BytesSent,
		TotalSize:        res.Stats.TotalSize,
		Command:          res.Command,
	}
	if err := r.journal.Record(run); err != nil {
		slog.Warn("failed to record run in journal", "run", res.RunID, "error", err)
	}
}
