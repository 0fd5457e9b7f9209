package transfer

import "golang.org/x/sys/unix"

// FreeSpace reports the bytes available to this process on the filesystem
// holding path. Copies that spool through temp files check this before
// committing to the spool.
func FreeSpace(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bsize) * int64(st.Bavail), nil
}
