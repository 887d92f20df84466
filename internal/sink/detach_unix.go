//go:build unix

package sink

import "syscall"

// detachSysProcAttr makes the erase task a session leader so it survives the
// parent's process group and controlling terminal going away.
func detachSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
