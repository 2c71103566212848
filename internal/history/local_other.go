//go:build !linux && !darwin

package history

// Mount types are not inspected on this platform.
func networkFilesystem(string) (string, error) {
	return "", nil
}
