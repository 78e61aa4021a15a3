// Package window implements WindowState (spec.md §3, §4.4): the
// per-window scratch data -- the window-local hit copy, suppression and
// key-used flags, per-station grids, reconstructed tracks and owned hit
// indices. One State is allocated per worker thread and Reset between
// windows; only hitKeyUsed persists across windows within a thread
// (spec.md §5).
package window
