//go:build !(linux || darwin || freebsd || openbsd || netbsd || dragonfly || windows)

package vault

import (
	"errors"
	"runtime"
)

func diskSpace(string) (*DiskSpaceInfo, error) {
	return nil, errors.New("vault: disk space check not supported on " + runtime.GOOS)
}
