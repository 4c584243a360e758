// Package diagnostics holds the per-pass diagnostics report produced by a bundler
// and the pure classification that turns it into a build outcome.
//
// Classification is total over every report shape: any error fails the pass,
// warnings fail it only under strict mode, and an empty-string message still
// counts as a message.
package diagnostics
