// Package netmon keeps a best-effort online/offline flag for the client.
//
// Passive platform events (see EventSource) are applied immediately but are
// never trusted alone: an active probe runs on a fixed interval and
// overrides whatever the events said last. The probe is also re-run on
// demand through Recheck, which focus sources (see FocusSource) call when
// the user comes back to the app.
//
// Listeners registered with OnChange fire on transitions only, never on
// every probe.
package netmon
