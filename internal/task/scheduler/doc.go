// Package scheduler is an in-process periodic job scheduler.
//
// Jobs are built with a fluent chain and bound with Do:
//
//	s := scheduler.New()
//	job, err := s.Every(10).Minutes().Do("report")
//	job, err = s.Every(1).Monday().At("09:00").DoFunc("weekly", weekly)
//	job, err = s.Every(5).To(10).Seconds().UntilString("18:30").Do("poll", "eu-west")
//
// The first failing step of a chain is remembered and returned by Do, so a
// chain never panics and a misconfigured job is never bound.
//
// A driver calls RunPending repeatedly (RunForever does this with a fixed
// tick). Each tick:
//   - collects the due jobs and dispatches them in ascending next-run order
//   - hands each callable to the Executor (fire and forget) and recomputes
//     the job's next run from the dispatch instant
//   - removes jobs whose deadline passed, before or after the recomputation
//   - prunes finished dispatches and, under DrainAll, waits for every
//     outstanding dispatch (including older ones) before returning
//
// Callables are looked up by name in a Registry so that snapshots written by
// Encode/SaveTo can be restored by Decode/LoadFrom in a later process.
//
// All instants are UTC.
package scheduler
