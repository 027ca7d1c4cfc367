// Package apkbuild parses Alpine APKBUILD descriptors into package records.
//
// # Overview
//
// An APKBUILD is a POSIX shell script. The parser does not execute it: it
// lexes the script into shell words, applies top-level variable assignments
// in order to a per-file [Scope], and reads the well-known variables
// (pkgname, pkgver, depends, makedepends, checkdepends, provides,
// subpackages, ...) from the final scope.
//
//	pkgs, err := apkbuild.Parse(text, apkbuild.Context{Path: "main/curl/APKBUILD"})
//
// # Expansion
//
// $NAME, ${NAME} and the common parameter operators (${v:-x}, ${v%.*},
// ${v//./_}, ${#v}, ...) are supported, as is $((...)) arithmetic.
// Command substitutions expand to nothing. Unset variables expand to "".
// Values are stored expanded, so depends="$depends foo" sees the previous
// value and cannot recurse.
//
// Assignments inside if/case branches are applied in source order, which
// approximates all branches being taken.
//
// # Sub-packages
//
// Every subpackages entry ("$pkgname-dev", "foo-libs:libs:noarch") becomes
// its own record. The matching split function, dev() or libs() in the
// examples, is evaluated in a child scope, so a sub-package inherits the
// primary package's dependency lists unless its function reassigns them.
//
// # Errors
//
// Unterminated quotes, substitutions and function bodies, and invalid
// identifiers on the left of an assignment, yield a [*ParseError] with code
// SYNTAX_ERROR and a line/column. An empty pkgname yields MISSING_NAME.
package apkbuild
