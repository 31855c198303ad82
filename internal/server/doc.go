// Package server implements the HTTP server and handlers for
// archive-drop, a LAN file-upload service for compressed archives. It
// wires together the upload pipeline (validation, collision-free disk
// storage with inline hashing, access gate, rate limit) and provides
// lifecycle helpers used by tests and the production binary.
package server
