// Package mcp provides an MCP (Model Context Protocol) server adapter
// for Fiscalia. It enables AI assistants to search stored fiscal
// documents and ask grounded questions over them.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
