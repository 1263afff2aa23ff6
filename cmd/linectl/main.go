// Command linectl is the CLI client for the netline daemon.
package main

import "github.com/lineproto/netline/cmd/linectl/commands"

func main() {
	commands.Execute()
}
