package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FilesystemOutput writes raw fetched pages to a directory for
// offline inspection. It is a debug side channel, nothing in the
// pipeline reads these files back.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{directory: dir}
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (o FilesystemOutput) Write(id string, contents string) {
	name := unsafeFilename.ReplaceAllString(strings.TrimLeft(id, "/"), "_")
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write page dump", "id", id, "err", err)
	}
}
