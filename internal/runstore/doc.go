// Package runstore persists pipeline runs, their stage history, and their
// artifact registry in SQLite.
//
// A run's stage rows are append-only. Every append commits the stage together
// with the run's derived status and progress in one transaction, so readers
// always observe a consistent snapshot. Progress never decreases across a
// run's stage sequence, and terminal runs reject further appends.
package runstore
