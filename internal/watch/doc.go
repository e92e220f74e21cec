// Package watch rebuilds a workspace when its sources change.
//
// A Source turns filesystem notifications into Events on a bounded queue.
// A Watcher drains that queue in a single control loop that owns all
// session state: the debounce timer, the in-flight flag and the pending
// rebuild flag. Rebuilds are strictly serialized; events that arrive while a
// build runs collapse into at most one follow-up build.
package watch
