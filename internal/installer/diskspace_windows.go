//go:build windows

package installer

import "golang.org/x/sys/windows"

// freeBytes returns the bytes available to the caller on the volume
// holding dir.
func freeBytes(dir string) (uint64, error) {
	var free, total, totalFree uint64
	path, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(path, &free, &total, &totalFree); err != nil {
		return 0, err
	}
	return free, nil
}
