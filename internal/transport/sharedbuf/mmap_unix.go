//go:build unix

package sharedbuf

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mapped is a Buffer backed by a memory-mapped file, so a harness in another
// process can share the region.
type Mapped struct {
	mu   sync.Mutex
	file *os.File
	data []byte
}

// OpenMapped maps path, creating it and growing it to RecordSize if needed.
func OpenMapped(path string) (*Mapped, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < RecordSize {
		if err := f.Truncate(RecordSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("grow %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, RecordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mapped{file: f, data: data}, nil
}

func (m *Mapped) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Record{}, os.ErrClosed
	}
	return Decode(m.data)
}

func (m *Mapped) Store(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return os.ErrClosed
	}
	copy(m.data, r.Encode())
	return nil
}

// Close unmaps the region and closes the file. It is safe to call twice.
func (m *Mapped) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
