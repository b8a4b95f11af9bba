// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/zimp-dev/zimp/cmd/zimp"

func main() {
	cmd.Execute()
}
