// Package watcher turns file system changes under a vault into debounced
// batches of note events.
//
// fsnotify is the primary source; a polling scanner takes over where
// fsnotify cannot be initialized. Raw events are filtered against the
// vault's include rules and coalesced per path: a path's timer restarts
// on every event and fires once the path has been quiet for the debounce
// window, so the last event in a burst always wins.
//
// Usage:
//
//	w, err := watcher.New(root, v, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx) }()
//
//	for batch := range w.Events() {
//	    svc.HandleEvents(ctx, batch)
//	}
package watcher
