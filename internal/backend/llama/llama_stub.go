//go:build !llama

package llama

import (
	"context"

	"clinicd/internal/device"
	"clinicd/internal/manager"
)

// Load reports that llama support is not compiled into this binary.
func (l *Loader) Load(context.Context, device.Placement) (manager.Handle, error) {
	return nil, manager.ErrDependencyUnavailable("llama backend not built (rebuild with -tags=llama)")
}
