package sink

import (
	"os"
	"os/exec"

	"github.com/keyfob/keyfob/pkg/schema"
)

// ProcessSpawner detaches erase tasks by re-executing the current binary
// with the hidden "erase" verb in a new session, working directory reset to
// /, stdio on the null device. The task is immune to the parent terminal
// closing and to the parent process being reaped.
type ProcessSpawner struct {
	// ExtraArgs are appended to the erase invocation, used to forward
	// clipboard/keystroke command overrides to the detached task.
	ExtraArgs []string
}

// EraseArgs builds the argv (including the hidden verb) that re-invokes the
// current binary as an erase task. The flag names here are the wire contract
// with the erase verb's FlagSet; the cmd package round-trips them in tests.
func EraseArgs(spec EraseSpec) []string {
	args := []string{"erase", "--action", spec.Action, "--delay", spec.Delay.String()}
	if spec.Target != "" {
		args = append(args, "--target", spec.Target)
	}
	return args
}

// Spawn starts the detached erase task. Any failure is DETACH_FAILURE: an
// undetached task would leak the secret indefinitely if the parent dies
// first, so callers must treat this as fatal before delivery.
func (p *ProcessSpawner) Spawn(spec EraseSpec) error {
	exe, err := os.Executable()
	if err != nil {
		return detachFailure(err)
	}

	args := append(EraseArgs(spec), p.ExtraArgs...)

	cmd := exec.Command(exe, args...)
	cmd.Dir = "/"
	// Nil stdio descriptors connect to the null device.
	cmd.SysProcAttr = detachSysProcAttr()
	if err := cmd.Start(); err != nil {
		return detachFailure(err)
	}
	// Do not wait: the task is reparented to init once this process exits.
	return cmd.Process.Release()
}

func detachFailure(err error) error {
	return schema.NewErrorf(schema.ErrCodeDetachFailure,
		"detach erase task: %s", err.Error()).WithCause(err)
}
