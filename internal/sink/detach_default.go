//go:build !unix

package sink

import "syscall"

// Non-unix platforms get no session detach; the spawned task still runs as
// an independent process.
func detachSysProcAttr() *syscall.SysProcAttr {
	return nil
}
