// SPDX-License-Identifier: MPL-2.0

// Package source locates, downloads and unpacks dependency sources.
//
// Source directories follow the "<name>-<version>" convention under the build
// root. Archives are fetched over HTTP into the root and unpacked there;
// repositories are cloned with go-git. A source directory that already exists
// is never fetched again.
package source
