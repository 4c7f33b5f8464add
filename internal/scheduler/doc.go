// Package scheduler triggers the check job: once immediately, then either at a
// fixed delay after each completion or on a cron schedule.
//
// Runs never overlap. A trigger that fires while the job is still running is
// skipped and counted.
package scheduler
