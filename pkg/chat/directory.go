package chat

import "sync"

// Directory holds the current profile of every user ever seen. Entries are
// never removed so history can always be joined against it.
type Directory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewDirectory creates a directory seeded with users
func NewDirectory(users ...User) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put inserts or replaces a profile
func (d *Directory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Lookup returns the profile for id
func (d *Directory) Lookup(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}
