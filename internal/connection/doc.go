// Package connection owns the push connection to the calendar server.
//
// A Client wraps one WebSocket, drives the status state machine
// (disconnected, connecting, connected, reconnecting, error), reconnects
// with capped exponential backoff on unexpected closes, and detects
// silently-dead sockets with an application-level ping/pong heartbeat.
// An authentication rejection (close code 1008) is fatal for the Client and
// is never retried.
//
// The Registry guarantees at most one live Client per scope: switching
// calendars tears the old connection down before the new one dials, and
// re-requesting the active scope returns the existing Client unchanged.
package connection
