//go:build linux

package infra

// flushCommands returns the commands that drop cached name resolutions.
// Without systemd-resolved there is no system-wide cache to flush.
func flushCommands(runner CommandRunner) [][]string {
	if runner == nil {
		return nil
	}
	if _, err := runner.LookPath("resolvectl"); err != nil {
		return nil
	}
	return [][]string{{"resolvectl", "flush-caches"}}
}
