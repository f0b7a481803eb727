//go:build darwin

package infra

// flushCommands returns the commands that drop cached name resolutions.
// mDNSResponder must be signalled as well or Safari keeps stale answers.
func flushCommands(_ CommandRunner) [][]string {
	return [][]string{
		{"dscacheutil", "-flushcache"},
		{"killall", "-HUP", "mDNSResponder"},
	}
}
