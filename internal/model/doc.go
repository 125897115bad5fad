// Package model defines the shared domain types: calendar entries, tasks,
// the projection filters that parameterize cached list views, and the
// wire-level message envelope pushed over the WebSocket.
package model
