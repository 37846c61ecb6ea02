package main

import (
	"os"

	"horse.fit/canon/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
