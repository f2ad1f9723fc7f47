package cli

import (
	"fmt"
	"os"

	"github.com/remedy-project/remedy/pkg/color"
	"github.com/remedy-project/remedy/pkg/remedy"
)

// requireClient opens the repository containing CWD, or exits with error.
func requireClient() *remedy.Client {
	cwd, err := os.Getwd()
	if err != nil {
		fmtErr("cannot get current directory: %v", err)
		os.Exit(1)
	}
	client, err := remedy.Open(cwd)
	if err != nil {
		fmtErr("%v", err)
		fmt.Fprintln(os.Stderr, "run 'remedy init' to initialize a repository here")
		os.Exit(1)
	}
	return client
}

func fmtErr(format string, args ...any) {
	prefix := "remedy: "
	if color.Enabled() {
		prefix = color.Error("remedy:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
