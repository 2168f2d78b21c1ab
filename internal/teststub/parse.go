package teststub

import (
	"path"
	"strings"
	"unicode"
)

// Launch describes how a worker module starts itself.
type Launch struct {
	Line      string // First non-blank line after the marker, trimmed
	ClassName string
	Variable  string
}

// ParseLaunch extracts the launch statement that follows the marker line in
// source. It returns ErrNoLaunchLine when the marker or a following statement
// is missing, and ErrNoClassName when the statement constructs nothing.
func ParseLaunch(source, marker string) (Launch, error) {
	lines := strings.Split(source, "\n")

	start := -1
	for i, line := range lines {
		if strings.Contains(line, marker) {
			start = i
			break
		}
	}
	if start < 0 {
		return Launch{}, ErrNoLaunchLine
	}

	var launch Launch
	for _, line := range lines[start+1:] {
		if s := strings.TrimSpace(line); s != "" {
			launch.Line = s
			break
		}
	}
	if launch.Line == "" {
		return Launch{}, ErrNoLaunchLine
	}

	launch.ClassName = className(launch.Line)
	if launch.ClassName == "" {
		return Launch{}, ErrNoClassName
	}

	variable, _, _ := strings.Cut(launch.Line, "=")
	launch.Variable = strings.TrimSpace(variable)
	return launch, nil
}

// className returns the identifier directly before the first "(" that is
// closed later on the line.
func className(line string) string {
	runes := []rune(line)
	for i, r := range runes {
		if r != '(' || !strings.ContainsRune(string(runes[i+1:]), ')') {
			continue
		}
		j := i
		for j > 0 && isWordRune(runes[j-1]) {
			j--
		}
		if j < i {
			return string(runes[j:i])
		}
	}
	return ""
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ImportPath turns a root-relative source path into a dotted module path.
func ImportPath(relPath, ext string) string {
	p := strings.TrimSuffix(strings.ReplaceAll(relPath, "\\", "/"), ext)
	return strings.ReplaceAll(p, "/", ".")
}

// WorkerName returns the file stem of relPath.
func WorkerName(relPath, ext string) string {
	return strings.TrimSuffix(path.Base(strings.ReplaceAll(relPath, "\\", "/")), ext)
}
