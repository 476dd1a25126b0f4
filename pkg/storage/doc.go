// Package storage manages the browser's download directory.
//
// The exporter snapshots the directory before confirming an export, waits
// for exactly one new completed file to show up, and renames it to
// <query key>_<start>-<end>.txt. The name ties every file to the range it
// holds, so no later step has to guess from timestamps.
package storage
