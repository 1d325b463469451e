package main

import (
	"fmt"
	"os"

	"github.com/sohan284/social-media-go/cmd/social/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
