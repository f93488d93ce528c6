// Package job defines the job record, its status machine, and the store
// contract every backend implements.
//
// # Status machine
//
// A [Record] moves strictly forward through
//
//	pending → accepted → running → done
//	                             → failed
//
// Skipping ahead is allowed (pending → running), moving back or writing the
// same status twice is not, and done / failed are final. Stores enforce the
// rule with [CanTransition] and report violations as
// sodmaster.ErrInvalidTransition.
//
// # Documents
//
// Payloads and results are JSON-shaped [Document] values. Stores hand out
// deep copies, so a caller mutating a record it read never affects what
// the store holds.
package job
