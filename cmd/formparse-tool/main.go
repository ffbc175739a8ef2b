// Command formparse-tool is a small demonstration front end for the
// formparse library: it reads a file and a Content-Type, parses it, and
// prints a summary of the fields and files found. It exercises
// formparse.ParseForm (spec §6.4) and nothing else; it is not a server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-formparse/formparse"
)

func main() {
	var (
		contentType   = flag.String("content-type", "", "Content-Type header value of the body (required)")
		uploadDir     = flag.String("upload-dir", "", "directory for spilled temp files (default: system temp)")
		maxMemoryFile = flag.Int64("max-memory-file-size", 1<<20, "bytes an uploaded file may hold in memory before spilling")
		maxBodySize   = flag.Int64("max-body-size", 0, "hard cap on total body bytes (0 = unbounded)")
	)
	flag.Parse()

	if *contentType == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: formparse-tool -content-type TYPE FILE")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open %s: %v", flag.Arg(0), err)
	}
	defer f.Close()

	opts := formparse.Options{
		UploadDir:         *uploadDir,
		MaxMemoryFileSize: *maxMemoryFile,
		MaxBodySize:       *maxBodySize,
	}

	fields, files, err := formparse.ParseForm([]byte(*contentType), f, opts)
	if err != nil {
		log.Fatalf("parse form: %v", err)
	}

	for _, field := range fields {
		fmt.Printf("field %q = %q\n", field.Name(), field.Bytes())
	}
	for _, file := range files {
		loc := "in-memory"
		if file.Spilled() {
			loc = file.Path()
		}
		fmt.Printf("file %q filename=%q content-type=%q size=%d (%s)\n",
			file.Name(), file.Filename(), file.ContentType(), file.Size(), loc)
	}
}
