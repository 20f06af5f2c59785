package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tbourn/meme-daily-backend/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "memed:", err)
		os.Exit(1)
	}
}
