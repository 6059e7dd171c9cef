package main

import "contactsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
