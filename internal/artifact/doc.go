// Package artifact owns a workspace's build output directory.
//
// A Manager guards the directory against concurrent use (at most one build
// in flight), remembers the most recent successful artifact, and removes the
// directory atomically on Clean. The current pointer is stored as a small
// JSON file inside the output directory so that a later invocation (for
// example "paperx open") sees the artifact produced by an earlier one.
package artifact
