//go:build !linux

package kstat

// Open returns the platform statistics handle.
func Open(opts Options) (Handle, error) {
	return nil, ErrUnsupported
}
