//go:build !unix

package deploy

import "syscall"

func detachedAttr() *syscall.SysProcAttr {
	return nil
}
