// Package git reads repository metadata for builds, such as the commit a
// bundle is compiled from.
package git
