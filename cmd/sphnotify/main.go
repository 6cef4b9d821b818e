package main

import (
	"sphnotify/cmd/sphnotify/commands"
	"sphnotify/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
