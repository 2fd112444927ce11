package source

import (
	"sort"
	"strings"
)

// FileSet maps FileIDs to file paths and keeps the raw text for snippet
// rendering. IDs are dense and start at 1.
type FileSet struct {
	paths []string
	texts []string
}

func NewFileSet() *FileSet {
	return &FileSet{
		paths: []string{""},
		texts: []string{""},
	}
}

// Add registers a file and returns its ID. The text may be empty when only
// locations, not snippets, are needed.
func (fs *FileSet) Add(path, text string) FileID {
	id := FileID(len(fs.paths))
	fs.paths = append(fs.paths, path)
	fs.texts = append(fs.texts, text)
	return id
}

func (fs *FileSet) Path(id FileID) string {
	if int(id) >= len(fs.paths) {
		return ""
	}
	return fs.paths[id]
}

func (fs *FileSet) Text(id FileID) string {
	if int(id) >= len(fs.texts) {
		return ""
	}
	return fs.texts[id]
}

func (fs *FileSet) Len() int {
	return len(fs.paths) - 1
}

// Position converts a byte offset into a 1-based line and column.
func (fs *FileSet) Position(id FileID, offset uint32) (line, col int) {
	text := fs.Text(id)
	if int(offset) > len(text) {
		offset = uint32(len(text))
	}
	prefix := text[:offset]
	line = strings.Count(prefix, "\n") + 1
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		col = len(prefix) - i
	} else {
		col = len(prefix) + 1
	}
	return line, col
}

// Line returns the full text of the 1-based line number.
func (fs *FileSet) Line(id FileID, line int) string {
	text := fs.Text(id)
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

// SortedPaths returns registered paths in lexical order, used for
// deterministic digests over a file group.
func (fs *FileSet) SortedPaths() []string {
	out := make([]string, 0, fs.Len())
	out = append(out, fs.paths[1:]...)
	sort.Strings(out)
	return out
}
