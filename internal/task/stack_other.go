//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd)

package task

// allocStack falls back to heap memory on systems without mmap. There is no
// guard page here: only the canary protects the end of the stack.
func allocStack(size uintptr) (mem []byte, guard uintptr, err error) {
	// Over-allocate so the usable window can be aligned.
	return make([]byte, alignUp(size, StackAlign)+StackAlign), 0, nil
}

func freeStack(mem []byte) error {
	return nil
}
