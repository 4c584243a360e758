package stage

import (
	"os"
	"path"
	"path/filepath"
)

// ExcludeFunc reports whether the entry at rel (slash-separated, relative to the
// triple's source) must not be copied. Excluding a directory skips its subtree.
type ExcludeFunc func(rel string) bool

// Triple is one copy instruction.
type Triple struct {
	Source      string
	Destination string
	Exclude     ExcludeFunc
	// Reason names the deployment collaborator that asked for this destination.
	Reason string
}

// Plan is an ordered set of copy instructions.
type Plan struct {
	Triples []Triple
}

// Destinations lists the destination directories in plan order.
func (p Plan) Destinations() []string {
	out := make([]string, 0, len(p.Triples))
	for _, t := range p.Triples {
		out = append(out, t.Destination)
	}
	return out
}

// ExcludeShell excludes the single file at shellRel (relative to the source root).
// An empty shellRel excludes nothing.
func ExcludeShell(shellRel string) ExcludeFunc {
	if shellRel == "" {
		return nil
	}
	clean := path.Clean(filepath.ToSlash(shellRel))
	return func(rel string) bool { return rel == clean }
}

// KeepExisting excludes files that already exist under dst, so a copy only
// fills in what is missing. Directories are never excluded; their contents are
// checked entry by entry.
func KeepExisting(dst string) ExcludeFunc {
	return func(rel string) bool {
		st, err := os.Lstat(filepath.Join(dst, filepath.FromSlash(rel)))
		return err == nil && !st.IsDir()
	}
}
