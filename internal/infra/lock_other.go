//go:build !unix

package infra

import "os"

// Without flock the lock degrades to a no-op; the scheduler refuses to run
// on these platforms anyway.
func tryFlock(_ *os.File) (bool, error) { return true, nil }

func funlock(_ *os.File) {}
