// SPDX-License-Identifier: MPL-2.0

// Package strategy provides the build backends a dependency's source tree is
// built with. Strategies are looked up by name through a Registry so recipes
// can select them with the build_type property and callers can register
// their own.
package strategy
