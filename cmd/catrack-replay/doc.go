/*
catrack-replay loads a serialized InputData archive (ca/hitstore.Encode
format) and replays the full track-finder core against it: per-stream
TrackFinder.ProcessStream in parallel, reporting the resulting track and
hit counts. It exists for manual smoke-testing; it owns no scheduling
policy beyond what ca/driver.RunParallel already provides and is not
part of the core's contract (spec.md §1, §6).
*/
package main
