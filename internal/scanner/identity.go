package scanner

import "sync"

// Identity uniquely identifies file data using both device and inode number.
// Inode alone can collide across filesystems.
type Identity struct {
	Dev uint64
	Ino uint64
}

// Registry records which identities a scan has already counted.
type Registry struct {
	seen sync.Map
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Observe reports whether id is seen for the first time. When several
// goroutines observe the same identity concurrently exactly one gets true.
func (r *Registry) Observe(id Identity) bool {
	_, loaded := r.seen.LoadOrStore(id, struct{}{})
	return !loaded
}
