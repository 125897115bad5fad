// Package api is the REST collaborator: it supplies the authoritative
// result for every write the optimistic coordinator issues, and the list
// and detail fetches that materialize cache projections.
package api
