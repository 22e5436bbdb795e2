//go:build !linux && !darwin

package session

import "os"

func writable(path string) bool {
	f, err := os.CreateTemp(path, ".probe-")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

func freeBytes(string) (int64, bool) {
	return 0, false
}
