// SPDX-License-Identifier: MPL-2.0

// Command depforge builds native dependencies from a recipe.
package main

import cmd "github.com/depforge/depforge/cmd/depforge"

func main() {
	cmd.Execute()
}
