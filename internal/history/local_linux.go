//go:build linux

package history

import (
	"golang.org/x/sys/unix"
)

var remoteMagics = map[uint32]string{
	uint32(unix.NFS_SUPER_MAGIC):  "nfs",
	uint32(unix.SMB_SUPER_MAGIC):  "smbfs",
	uint32(unix.CIFS_SUPER_MAGIC): "cifs",
	uint32(unix.AFS_SUPER_MAGIC):  "afs",
	uint32(unix.SMB2_SUPER_MAGIC): "smb2",
}

// networkFilesystem names the network filesystem dir is on, or returns ""
// for local disk.
func networkFilesystem(dir string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "", err
	}
	return remoteMagics[uint32(st.Type)], nil
}
