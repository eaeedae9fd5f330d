package script

import (
	"fmt"
	"regexp"
	"strings"
)

// Marker is the token prefixing every scheduler directive line.
const Marker = "#SBATCH"

// directiveRe captures prefix, key, separator and value of one directive
// line, e.g. "#SBATCH --partition=p2" or "#SBATCH --mem 16G".
var directiveRe = regexp.MustCompile(`^(\s*#SBATCH\s+)--([A-Za-z0-9][A-Za-z0-9-]*)(=|\s+)(.*)$`)

// Directive is one parsed directive of the active block. Keys are the long
// option names without the leading dashes, case-sensitive.
type Directive struct {
	Key   string
	Sep   string // "=" or the original whitespace
	Value string
	Line  int // index into the file's lines
}

// DirectiveSet is the in-memory representation of a submission script: its
// lines, the parsed leading directive block and the positions needed to
// reproduce an edit. Content outside an edited line round-trips
// byte-for-byte.
type DirectiveSet struct {
	lines           []string
	trailingNewline bool

	directives []Directive
	lastLine   int // index of the last directive line, -1 when none
	insertLine int // insertion point when no directive exists yet
	bodyStart  int // first line past the directive block
}

// Parse builds a DirectiveSet from script content. The directive block is
// the leading run of comment/blank lines after the shebang; a marker line
// past the first non-comment line belongs to the body and is left alone.
func Parse(content string) *DirectiveSet {
	trailing := strings.HasSuffix(content, "\n")
	if trailing {
		content = strings.TrimSuffix(content, "\n")
	}
	lines := strings.Split(content, "\n")

	ds := &DirectiveSet{
		lines:           lines,
		trailingNewline: trailing,
		lastLine:        -1,
		insertLine:      0,
		bodyStart:       len(lines),
	}
	if len(lines) > 0 && strings.HasPrefix(lines[0], "#!") {
		ds.insertLine = 1
	}

	for i := ds.insertLine; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if m := directiveRe.FindStringSubmatch(lines[i]); m != nil {
			key := m[2]
			// First occurrence wins; a well-formed block has unique keys.
			if _, ok := ds.get(key); !ok {
				ds.directives = append(ds.directives, Directive{
					Key:   key,
					Sep:   m[3],
					Value: m[4],
					Line:  i,
				})
			}
			ds.lastLine = i
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ds.bodyStart = i
		break
	}
	return ds
}

func (ds *DirectiveSet) get(key string) (Directive, bool) {
	for _, d := range ds.directives {
		if d.Key == key {
			return d, true
		}
	}
	return Directive{}, false
}

// Has reports whether the active block carries key.
func (ds *DirectiveSet) Has(key string) bool {
	_, ok := ds.get(key)
	return ok
}

// Value returns the current value of key, "" when absent.
func (ds *DirectiveSet) Value(key string) string {
	d, _ := ds.get(key)
	return d.Value
}

// set updates key in place when present, preserving the line's prefix and
// separator, and otherwise inserts a new directive line directly after the
// last existing one. Existing directive ordering is never disturbed.
func (ds *DirectiveSet) set(key, value string) {
	if d, ok := ds.get(key); ok {
		m := directiveRe.FindStringSubmatch(ds.lines[d.Line])
		ds.lines[d.Line] = m[1] + "--" + key + m[3] + value
		for i := range ds.directives {
			if ds.directives[i].Key == key {
				ds.directives[i].Value = value
			}
		}
		return
	}

	line := fmt.Sprintf("%s --%s=%s", Marker, key, value)
	at := ds.insertLine
	if ds.lastLine >= 0 {
		at = ds.lastLine + 1
	}
	ds.lines = append(ds.lines, "")
	copy(ds.lines[at+1:], ds.lines[at:])
	ds.lines[at] = line

	for i := range ds.directives {
		if ds.directives[i].Line >= at {
			ds.directives[i].Line++
		}
	}
	ds.directives = append(ds.directives, Directive{Key: key, Sep: "=", Value: value, Line: at})
	ds.lastLine = at
	if ds.bodyStart >= at {
		ds.bodyStart++
	}
}

// launcherRe matches the process-count flag of the training launcher in
// both spellings and both join forms.
var launcherRe = regexp.MustCompile(`(--nproc[-_]per[-_]node)(=|\s+)(\d+)`)

// rewriteLauncherFlags aligns every launcher process-count flag in the
// script body with the requested gpu count.
func (ds *DirectiveSet) rewriteLauncherFlags(gpus int) {
	for i := ds.bodyStart; i < len(ds.lines); i++ {
		ds.lines[i] = launcherRe.ReplaceAllString(ds.lines[i], fmt.Sprintf("${1}${2}%d", gpus))
	}
}

// Render materializes the edited script.
func (ds *DirectiveSet) Render() string {
	out := strings.Join(ds.lines, "\n")
	if ds.trailingNewline {
		out += "\n"
	}
	return out
}
