// Package git reads changed lines from the working tree of a git repository.
package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrGitUnavailable is returned when the git binary cannot be run.
var ErrGitUnavailable = errors.New("git unavailable")

// ChangedFile lists the lines of one file touched since the base revision. Paths are slash
// separated and relative to the directory the diff ran in.
type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// ChangedFiles runs git diff in dir against baseRef. Only paths ending in one of the
// suffixes are kept; no suffixes keeps everything.
func ChangedFiles(ctx context.Context, dir, baseRef string, suffixes ...string) ([]ChangedFile, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGitUnavailable, err)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "diff", "-U0", "--relative", "--no-color", baseRef)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("git diff %s failed: %s", baseRef, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git diff %s failed: %w", baseRef, err)
	}

	changes, err := ParseDiff(output)
	if err != nil || len(suffixes) == 0 {
		return changes, err
	}
	kept := changes[:0]
	for _, c := range changes {
		for _, s := range suffixes {
			if strings.HasSuffix(c.Path, s) {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept, nil
}

// Hunk header: @@ -oldStart,oldLen +newStart,newLen @@
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ParseDiff reads unified diff output with zero context lines. A pure deletion marks the
// line it follows. Deleted files are dropped.
func ParseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		changes []ChangedFile
		current *ChangedFile
		deleted bool
	)
	flush := func() {
		if current != nil && !deleted {
			changes = append(changes, *current)
		}
		current, deleted = nil, false
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				current = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/")}
			}
		case current == nil:
		case line == "+++ /dev/null":
			deleted = true
		case strings.HasPrefix(line, "@@"):
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			if count == 0 {
				current.ChangedLines = append(current.ChangedLines, max(start, 1))
				continue
			}
			for i := 0; i < count; i++ {
				current.ChangedLines = append(current.ChangedLines, start+i)
			}
		}
	}
	flush()
	return changes, scanner.Err()
}
