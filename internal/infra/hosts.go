package infra

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

// DefaultHostsFile is the system hosts file on macOS and Linux.
const DefaultHostsFile = "/etc/hosts"

const (
	denyIPv4 = "0.0.0.0"
	denyIPv6 = "::1"
	wwwLabel = "www."
)

// HostsEditor implements domain.HostsEditor by rewriting the hosts file.
// Only the region between the ENOUGH markers is ever touched.
type HostsEditor struct {
	path      string
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewHostsEditor creates an editor for the given hosts file.
func NewHostsEditor(path string, runner CommandRunner, logger *zap.Logger) *HostsEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostsEditor{
		path:      path,
		cmdRunner: runner,
		logger:    logger,
	}
}

// Path returns the hosts file path.
func (e *HostsEditor) Path() string {
	return e.path
}

// Apply replaces any existing block region with one denying websites.
func (e *HostsEditor) Apply(ctx context.Context, websites []string) error {
	content, err := e.read()
	if err != nil {
		return err
	}

	base := RemoveExistingBlocks(content)
	if base != "" && !strings.HasSuffix(base, "\n") {
		base += "\n"
	}
	if err := e.write(base + BuildBlockRegion(websites)); err != nil {
		return err
	}

	e.logger.Info("blocked websites using hosts file",
		zap.String("path", e.path),
		zap.Int("websites", len(websites)))

	return e.flushCache(ctx)
}

// Revert strips the block region. Safe to call when none exists.
func (e *HostsEditor) Revert(ctx context.Context) error {
	content, err := e.read()
	if err != nil {
		return err
	}

	cleaned := RemoveExistingBlocks(content)
	if cleaned != content {
		if err := e.write(cleaned); err != nil {
			return err
		}
		e.logger.Info("removed hosts block region", zap.String("path", e.path))
	}

	return e.flushCache(ctx)
}

func (e *HostsEditor) read() (string, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return "", classifyFSError("read", e.path, err)
	}
	return string(data), nil
}

func (e *HostsEditor) write(content string) error {
	return replaceFile(e.path, []byte(content), fileMode(e.path, 0644))
}

// flushCache runs the platform's name-resolution cache flush commands.
func (e *HostsEditor) flushCache(ctx context.Context) error {
	for _, argv := range flushCommands(e.cmdRunner) {
		if err := e.cmdRunner.Run(ctx, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCacheFlushFailed, err)
		}
	}
	return nil
}

// RemoveExistingBlocks drops every marker line and every line between a
// start and an end marker. The blank separator line written directly before
// a start marker and directly after an end marker belongs to the region and
// is dropped as well. Markers toggle a boolean, so unbalanced or repeated
// markers degrade to "drop until the next end marker".
func RemoveExistingBlocks(content string) string {
	if content == "" {
		return ""
	}

	lines := strings.SplitAfter(content, "\n")
	kept := make([]string, 0, len(lines))
	inBlock := false
	skipBlank := false

	for _, line := range lines {
		if line == "" {
			continue // SplitAfter yields a trailing empty piece
		}
		text := strings.TrimRight(line, "\r\n")

		if strings.Contains(text, domain.HostsMarkerStart) {
			if !inBlock && len(kept) > 0 && isBlank(kept[len(kept)-1]) {
				kept = kept[:len(kept)-1]
			}
			inBlock = true
			skipBlank = false
			continue
		}
		if strings.Contains(text, domain.HostsMarkerEnd) {
			inBlock = false
			skipBlank = true
			continue
		}
		if inBlock {
			continue
		}
		if skipBlank {
			skipBlank = false
			if isBlank(line) {
				continue
			}
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "")
}

// BuildBlockRegion renders the delimited region for websites: for every host
// a 0.0.0.0 and a ::1 entry, plus the same pair for its www. twin (added when
// missing, stripped when present). Entries without a parsable host are skipped.
func BuildBlockRegion(websites []string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(domain.HostsMarkerStart)
	b.WriteString("\n")

	for _, host := range BlockedHosts(websites) {
		writeDenyPair(&b, host)
	}

	b.WriteString(domain.HostsMarkerEnd)
	b.WriteString("\n\n")
	return b.String()
}

// BlockedHosts returns the host names BuildBlockRegion denies, in order:
// each website's host followed by its www. twin.
func BlockedHosts(websites []string) []string {
	var hosts []string
	for _, website := range websites {
		host := hostOf(website)
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
		if strings.HasPrefix(host, wwwLabel) {
			if bare := strings.TrimPrefix(host, wwwLabel); bare != "" {
				hosts = append(hosts, bare)
			}
		} else {
			hosts = append(hosts, wwwLabel+host)
		}
	}
	return hosts
}

func writeDenyPair(b *strings.Builder, host string) {
	fmt.Fprintf(b, "%s %s\n", denyIPv4, host)
	fmt.Fprintf(b, "%s %s\n", denyIPv6, host)
}

func hostOf(website string) string {
	u, err := url.Parse(strings.TrimSpace(website))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isBlank(line string) bool {
	return strings.TrimRight(line, "\r\n") == ""
}

// Ensure HostsEditor implements domain.HostsEditor.
var _ domain.HostsEditor = (*HostsEditor)(nil)
