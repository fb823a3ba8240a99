//go:build linux

package rbspy

import (
	"github.com/rbspy/rbspy-sub000/internal/memory"
)

func init() {
	newHandle = func(pid int) (memory.ProcessHandle, error) {
		return memory.NewLiveProcess(pid)
	}
}
