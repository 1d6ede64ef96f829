package main

import "os"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(1)
	}
}
