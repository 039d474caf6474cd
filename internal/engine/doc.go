// Package engine reconciles target collections against canonical customer
// identities and keeps a live store and its snapshot mirror in step.
//
// A reconcile pass has two phases:
//
//  1. Plan: build a match.Index from the identity records, resolve every
//     target record and stage one update per record whose tracked fields
//     differ from the resolved stable id. Planning is pure.
//  2. Apply: issue one UpdateOne per staged update. Writes are independent;
//     a failed write is recorded in the Report and the batch continues.
//
// Reading the target collection happens before any write. If it fails the
// run returns an *Error with ErrCodeStoreUnavailable and nothing is written.
//
// Updates may run on several goroutines (WithWorkers). Results are folded in
// record order so a Report does not depend on write interleaving.
package engine
