package runner

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Matches: main.ts(3,7): error TS2322: Type 'string' is not assignable ...
var tsDiagnosticRegex = regexp.MustCompile(`^(?:.*/)?([^/\s]+\.tsx?)\((\d+),(\d+)\): error (TS\d+): (.+)$`)

// parseTypeErrors extracts tsc diagnostics, stripping workspace paths
func parseTypeErrors(output string) string {
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := tsDiagnosticRegex.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		lines = append(lines, m[1]+"("+m[2]+","+m[3]+"): "+m[4]+": "+m[5])
	}
	return strings.Join(lines, "\n")
}

// splitLogs turns program stdout into log lines
func splitLogs(stdout string) []string {
	stdout = strings.TrimRight(stdout, "\n")
	if stdout == "" {
		return []string{}
	}
	return strings.Split(stdout, "\n")
}

// errorMessage picks the most useful failure text from a finished command
func errorMessage(res *ExecResult) string {
	if msg := lastErrorLine(res.Stderr); msg != "" {
		return msg
	}
	if msg := lastErrorLine(res.Stdout); msg != "" {
		return msg
	}
	return "process exited with code " + strconv.Itoa(res.ExitCode)
}

// lastErrorLine returns the last line that looks like an error, or the last
// non-empty line.
func lastErrorLine(s string) string {
	var last, lastErr string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = line
		if strings.Contains(line, "Error") || strings.Contains(line, "error:") {
			lastErr = line
		}
	}
	if lastErr != "" {
		return lastErr
	}
	return last
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... output truncated"
}
