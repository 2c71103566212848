//go:build darwin

package history

import (
	"golang.org/x/sys/unix"
)

var remoteTypes = map[string]bool{"nfs": true, "smbfs": true, "afpfs": true, "webdav": true}

func networkFilesystem(dir string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "", err
	}
	name := unix.ByteSliceToString(st.Fstypename[:])
	if remoteTypes[name] {
		return name, nil
	}
	return "", nil
}
