// Package deps defines the package records exchanged between the descriptor
// parser, the scanner, persistence and the graph builder.
//
// # Overview
//
// A [Package] is what one APKBUILD (or one of its sub-packages) declares:
// name, version, repository, provides aliases and dependency tokens grouped
// by [Kind]. Tokens are kept verbatim, constraint suffix included, so a
// package set can be serialized and rebuilt without loss.
//
// # Kinds
//
// Three kinds exist, matching the APKBUILD variables they come from:
//
//   - [KindRuntime]: depends
//   - [KindBuild]: makedepends, makedepends_build, makedepends_host
//   - [KindCheck]: checkdepends
//
// Queries take a [KindSet]; [ParseKinds] turns "runtime,build" or "all"
// into one.
//
// # Tokens
//
// [ParseDependency] splits "musl>=1.2" into name "musl", operator ">=" and
// version "1.2". Constraints are informational only: resolution uses the
// bare name.
//
// Sub-packages live in subdirectories:
//
//   - [apkbuild]: the descriptor parser
//   - [aports]: the tree scanner that runs the parser in parallel
//
// [apkbuild]: github.com/matzehuels/depmap/pkg/deps/apkbuild
// [aports]: github.com/matzehuels/depmap/pkg/deps/aports
package deps
