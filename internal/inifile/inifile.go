// Package inifile reads and writes INI-style settings files used for
// calculation presets.
package inifile

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Settings maps section names to option/value pairs. Option names are
// lowercased on read, mirroring configparser behavior.
type Settings map[string]map[string]string

// Read parses settings from r. Options whose value is empty or the literal
// "none" (any case) are skipped. Lines starting with "#" or ";" are
// comments. Values may continue "key = value" or "key: value" forms.
func Read(r io.Reader) (Settings, error) {
	settings := Settings{}
	var section string

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, apperrors.New(apperrors.CodeAPIInvalidBody,
					fmt.Sprintf("line %d: unterminated section header %q", lineno, line))
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			if settings[section] == nil {
				settings[section] = map[string]string{}
			}
			continue
		}

		key, value, ok := cutAssignment(line)
		if !ok {
			return nil, apperrors.New(apperrors.CodeAPIInvalidBody,
				fmt.Sprintf("line %d: expected key = value, got %q", lineno, line))
		}
		if section == "" {
			return nil, apperrors.New(apperrors.CodeAPIInvalidBody,
				fmt.Sprintf("line %d: option %q outside any section", lineno, key))
		}
		if value == "" || strings.EqualFold(value, "none") {
			continue
		}
		settings[section][strings.ToLower(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAPIInvalidBody, "scan ini", err)
	}
	return settings, nil
}

func cutAssignment(line string) (key, value string, ok bool) {
	eq := strings.IndexByte(line, '=')
	colon := strings.IndexByte(line, ':')
	sep := eq
	if sep < 0 || (colon >= 0 && colon < sep) {
		sep = colon
	}
	if sep < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:sep]), strings.TrimSpace(line[sep+1:]), true
}

// Write renders settings to w with sections and options in sorted order.
// Empty settings write nothing.
func Write(w io.Writer, settings Settings) error {
	sections := make([]string, 0, len(settings))
	for section := range settings {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	for i, section := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "[%s]\n", section); err != nil {
			return err
		}
		options := make([]string, 0, len(settings[section]))
		for option := range settings[section] {
			options = append(options, option)
		}
		sort.Strings(options)
		for _, option := range options {
			if _, err := fmt.Fprintf(w, "%s = %s\n", option, settings[section][option]); err != nil {
				return err
			}
		}
	}
	return nil
}
