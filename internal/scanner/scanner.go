package scanner

import "github.com/blackwell-systems/autorevoke/internal/store"

// Scanner imports package manifests from a directory tree into the store.
type Scanner struct {
	store *store.Store
	root  string
}

// New creates a new Scanner reading manifests under root.
func New(store *store.Store, root string) *Scanner {
	return &Scanner{store: store, root: root}
}

// Root returns the manifest directory the scanner reads.
func (s *Scanner) Root() string {
	return s.root
}
