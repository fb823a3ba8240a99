//go:build linux

package memory

import (
	"errors"

	"golang.org/x/sys/unix"
)

const (
	errENOENT = unix.ENOENT
	errESRCH  = unix.ESRCH
	errEPERM  = unix.EPERM
	errEACCES = unix.EACCES
	errEFAULT = unix.EFAULT
)

func isErrno(err error, want unix.Errno) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == want
	}
	return false
}
