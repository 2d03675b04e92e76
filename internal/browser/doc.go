// Package browser is the navigation state machine: a Browser drives a
// pipeline, keeps the current request and response, a history stack, and
// the lazily parsed view of the current HTML document.
//
// A browser starts with no document. Open, FollowLink and Submit push the
// current document onto the history before navigating; Reload does not.
// Failed navigations still become current, so URL and Response describe
// the last attempt. After Close every verb fails with ErrClosed.
package browser
