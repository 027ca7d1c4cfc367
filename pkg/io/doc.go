// Package io reads and writes package sets and dependency graphs as JSON.
//
// # Package Sets
//
// A package set is the output of a scan: every [deps.Package] record, in
// scan order. It is the unit that gets cached and stored as a snapshot, and
// it is enough to rebuild an identical graph:
//
//	{
//	  "format": "depmap/packages",
//	  "version": 1,
//	  "packages": [
//	    {"name": "curl", "version": "8.5.0", "release": 0,
//	     "dependencies": {"runtime": ["libcurl"], "build": ["zlib-dev"]}}
//	  ]
//	}
//
// Use [WritePackages] / [ReadPackages] for streams and [ExportPackages] /
// [ImportPackages] for files. Reading a set and building a graph from it
// yields the same nodes, edges and report as building from the original
// records.
//
// # Node-Link Graphs
//
// [WriteGraph] exports a built graph in node-link form for external tools:
//
//	{
//	  "nodes": [{"id": "curl", "version": "8.5.0-r0", "repository": "main"}],
//	  "edges": [{"from": "curl", "to": "libcurl", "kind": "runtime"}]
//	}
//
// Edges point at resolved package names, so aliases do not survive the
// export. [ReadGraph] turns such a document back into a graph whose edges
// match the exported ones exactly.
//
// # Concurrency
//
// Functions in this package keep no state and may be called concurrently.
//
// [deps.Package]: github.com/matzehuels/depmap/pkg/deps.Package
package io
