package wad

import (
	"io"
	"log"
)

// logger receives lump directory and art loading progress. Tolerated
// problems in the art lumps are logged with a "Warning: " prefix.
var logger *log.Logger = log.New(io.Discard, "", log.LstdFlags)

func SetLogger(l *log.Logger) {
	logger = l
}
