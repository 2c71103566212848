//go:build unix

package deploy

import "syscall"

// detachedAttr puts the deploy in its own process group so signals sent to
// the server do not reach it.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
