// Package gait is a cooperative control-flow runtime for scripting
// devices.
//
// Programs are trees of directives (assignments, waits, loops,
// rules, emissions) that a scheduler advances one tick at a time.
// The execution core is in package 'core'.  Package 'program' builds
// directive trees from YAML or JSON documents, and package 'sio'
// runs a scheduler behind stdio, TCP, WebSocket and MQTT couplings.
//
// Commands are in 'cmd': gaitd (the daemon), gaitsh (an interactive
// client), gaittool (checking, rendering and testing programs) and
// patmatch (pattern matching from the command line).
package gait
