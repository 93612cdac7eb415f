//go:build !linux

package pcitool

import "log/slog"

// Open returns the platform binder.
func Open(procRoot string, logger *slog.Logger) (Binder, error) {
	return nil, ErrUnsupported
}
