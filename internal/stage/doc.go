// Package stage copies completed build output into the destination folders the
// surrounding deployment pipeline reads from.
//
// A Plan is an ordered list of (source, destination, exclude) triples. Staging
// never clears a destination; it only overwrites the entries it copies. Symbolic
// links under the source are dereferenced so destinations receive real files.
package stage
