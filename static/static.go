// Package static holds assets compiled into the binary.
package static

import _ "embed"

// TrackerJS is the browser tracker served at /tracker.js.
//
//go:embed tracker.js
var TrackerJS []byte
