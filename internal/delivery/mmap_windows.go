//go:build windows

package delivery

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapFile maps size bytes of f read-only. The returned release function
// unmaps the view; the caller may close f once mapFile returns.
func mapFile(f *os.File, size int64) ([]byte, func() error, error) {
	mapping, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, uint32(size>>32), uint32(size), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create file mapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(mapping)
		return nil, nil, fmt.Errorf("map view of file: %w", err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return data, func() error {
		err := windows.UnmapViewOfFile(addr)
		if closeErr := windows.CloseHandle(mapping); err == nil {
			err = closeErr
		}
		return err
	}, nil
}
