package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrRsyncNotFound means the rsync binary is not on PATH. Launch never
	// happens, so this surfaces as a configuration failure.
	ErrRsyncNotFound = errors.New("rsync binary not found")
)

// FailureClass labels where a failed push broke down. The class is additive
// observability for logs and the journal; rsync's own diagnostics and exit
// code always pass through untouched.
type FailureClass string

const (
	// FailureConfig covers everything that stops a push before rsync
	// touches the network: validation, usage errors, a missing binary.
	FailureConfig FailureClass = "config"

	// FailureTransport covers SSH channel establishment and loss.
	FailureTransport FailureClass = "transport"

	// FailureTransfer covers rsync failing mid-transfer.
	FailureTransfer FailureClass = "transfer"

	// FailureNone is a clean exit.
	FailureNone FailureClass = ""
)

// ClassifyExitCode maps an rsync exit code onto the failure taxonomy.
//
// 255 is the remote shell's own failure exit; 5, 10, 30 and 35 are rsync's
// connection and timeout codes. 1 through 4 are usage, protocol and
// unsupported-action errors, which only a bad invocation produces. Anything
// else non-zero happened after the channel was up, so it reads as a
// transfer failure.
func ClassifyExitCode(code int) FailureClass {
	switch {
	case code == 0:
		return FailureNone
	case code >= 1 && code <= 4:
		return FailureConfig
	case code == 5 || code == 10 || code == 30 || code == 35 || code == 255:
		return FailureTransport
	default:
		return FailureTransfer
	}
}

// ExitError reports a push whose rsync child ran and failed. Code is the
// child's own exit code and is what the pushbox process exits with.
type ExitError struct {
	Code  int
	Class FailureClass
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("rsync exited with code %d (%s failure)", e.Code, e.Class)
}
