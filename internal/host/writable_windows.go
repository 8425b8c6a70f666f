//go:build windows

package host

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errReadOnlyDir = errors.New("directory is read-only")

func checkWritable(dir string) error {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return err
	}
	if attrs&windows.FILE_ATTRIBUTE_READONLY != 0 {
		return errReadOnlyDir
	}
	return nil
}
