//go:build !unix

package platform

import "errors"

// Reexec is not supported without exec(2).
func Reexec() error {
	return errors.New("re-exec is not supported on this platform")
}
