//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package task

import "golang.org/x/sys/unix"

// allocStack maps size bytes (rounded up to whole pages) plus one guard page
// below them. The guard page is inaccessible, so running off the bottom of
// the stack faults instead of silently corrupting a neighbouring mapping.
func allocStack(size uintptr) (mem []byte, guard uintptr, err error) {
	page := uintptr(unix.Getpagesize())
	size = alignUp(size, page)
	mem, err = unix.Mmap(-1, 0, int(size+page), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, 0, err
	}
	if err := unix.Mprotect(mem[:page], unix.PROT_NONE); err != nil {
		unix.Munmap(mem)
		return nil, 0, err
	}
	return mem, page, nil
}

func freeStack(mem []byte) error {
	return unix.Munmap(mem)
}
