// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the depforge CLI.
//
// ActionableError records what operation failed, on which resource, and how a
// user can recover. Issue holds longer Markdown guidance for well-known failure
// classes (missing recipe, failed download, missing platform tool) and renders
// it through glamour.
package issue
