// SPDX-License-Identifier: MPL-2.0

// Package orchestrator runs the pipeline that brings one dependency up to
// date: it decides whether the dependency is already satisfied, obtains it
// through an installer, a package manager or a source build, and runs the
// recipe's pre-build and post-install steps around that.
//
// Environment assignments for a dependency are carried as an immutable
// overlay handed to every child process; the depforge process environment
// is never modified.
package orchestrator
