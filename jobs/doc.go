// Package jobs is a small persistent task queue. Jobs are rows in the
// application database, so inserting one inside a business transaction makes
// it visible to workers only once that transaction commits.
package jobs
