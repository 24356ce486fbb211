// sidenote: a local note store with tags, settings and autosave.
//
// Usage:
//
//	sidenote serve               # Start the MCP server (stdio transport)
//	sidenote note create -t Plan # Work with notes from the shell
//	sidenote backup              # Snapshot the database
package main

func main() {
	Execute()
}
