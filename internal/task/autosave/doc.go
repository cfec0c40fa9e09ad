// Package autosave persists the schedule snapshot on a cron or interval
// trigger, but only when jobs changed since the last save.
//
// Changes are learned from the event bus (job.* and schedule.restored), so
// the scheduler never calls into this package.
package autosave
