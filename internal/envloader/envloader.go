// Package envloader parses .env files into ordered variable lists.
//
// Overview:
//   - Responsibility: Parse KEY=value files while keeping declaration order
//   - Key Types: Var
//   - Concurrency Model: Single-threaded file reading
//   - Error Semantics: Missing files and malformed lines are reported with the line number
//   - Performance Notes: One pass over the input, minimal allocations
//
// Usage:
//
//	vars, err := envloader.LoadEnvFile(".env")
//	for _, v := range vars { fmt.Println(v.Key, v.Value) }
package envloader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Var is one variable declared in an env file.
type Var struct {
	Key   string
	Value string
	Line  int // 1-based line of the declaration
}

// LoadEnvFile loads variables from a .env file.
//
// The .env file format supports:
//   - KEY=value format, split at the first "="
//   - Comments starting with #
//   - Empty lines
//   - An optional "export " prefix
//   - Quoted values (single or double quotes)
//   - Variable references are not expanded
//
// Parameters:
//   - path: Path to .env file
//
// Returns:
//   - []Var: Variables in declaration order
//   - error: File read or parse error if any
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - O(n) where n is number of lines
func LoadEnvFile(path string) ([]Var, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	vars, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vars, nil
}

// Parse reads env declarations from r. A key declared twice keeps its first
// position and takes the last value.
func Parse(r io.Reader) ([]Var, error) {
	var vars []Var
	index := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid line %d: %s (expected KEY=value format)", lineNum, line)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid line %d: empty key", lineNum)
		}
		value = unquote(strings.TrimSpace(value))

		if i, seen := index[key]; seen {
			vars[i].Value = value
			vars[i].Line = lineNum
			continue
		}
		index[key] = len(vars)
		vars = append(vars, Var{Key: key, Value: value, Line: lineNum})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return vars, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// ToMap converts variables to a map.
func ToMap(vars []Var) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Key] = v.Value
	}
	return m
}

// Keys returns the variable names in declaration order.
func Keys(vars []Var) []string {
	keys := make([]string, len(vars))
	for i, v := range vars {
		keys[i] = v.Key
	}
	return keys
}
