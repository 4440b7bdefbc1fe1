// Package mmap maps shape payload files read-only into memory so the local
// blob store can serve them without an extra copy through kernel buffers.
//
// On Unix the mapping uses mmap(2) through golang.org/x/sys/unix. Other
// platforms fall back to reading the whole file.
package mmap
