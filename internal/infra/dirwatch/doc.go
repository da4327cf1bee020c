// Package dirwatch watches a simulation output tree for new files.
//
// fsnotify is not recursive, so the watcher adds every existing directory
// under the root and each directory created later. Bursts of create and write
// events are coalesced: callbacks run once the tree has been quiet for the
// debounce interval, which suits producers that write a snapshot as many
// per-rank files.
package dirwatch
