// SPDX-License-Identifier: MIT
package main

import reposentry "github.com/reposentry/reposentry/cmd/reposentry"

// execute is overridable in tests.
var execute = reposentry.Execute

func main() {
	execute()
}
