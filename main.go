// ABOUTME: Entry point for the filemgr CLI
// ABOUTME: Terminal client for listing, uploading and managing stored files

package main

import (
	"fmt"
	"os"

	"github.com/AsafNachman/file-management-system/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
