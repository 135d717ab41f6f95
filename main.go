package main

import "github.com/naka-gawa/recent-activity/cmd"

func main() {
	cmd.Execute()
}
