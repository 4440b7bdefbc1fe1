// Package fs provides the filesystem seam used to publish run outputs.
//
//   - [FileSystem]: abstracts open, remove, rename and directory operations
//   - [WriteFile]: temp file plus rename for a single file
//   - [Staging]: a hidden per-run directory committed into the destination
//   - [FaultyFS]: test wrapper that injects write, sync and rename failures
//
// Production code uses fs.Default (the local [OS] file system). Tests inject
// [FaultyFS] to check that a failed run leaves no outputs behind:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("z.bin", fs.Fault{FailOnWrite: true})
//
// Operations take no context. Local filesystem calls are not interruptible
// at the syscall level; remote storage goes through blobstore instead.
package fs
