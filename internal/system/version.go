package system

import "fmt"

var Name = "scopeenginectl"
var Version = "<unset>"
var Commit = "<unset>"
var Repository = "https://github.com/clusterauth/scope-engine"

func PrettyInfo() string {
	return fmt.Sprintf(`
===========================================================================
Application: %s
Version %s
GOTO: %s/-/tree/%s
===========================================================================
`, Name, Version, Repository, Commit)
}
