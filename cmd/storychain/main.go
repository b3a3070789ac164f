package main

import (
	"os"

	"horse.fit/storychain/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
