// Command upload pushes one or more media files to a mediakeep server,
// chunking anything larger than the configured chunk size.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"

	"mediakeep/uploader"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:8080", "mediakeep server base URL")
		token       = flag.String("token", os.Getenv("MEDIAKEEP_TOKEN"), "API token (defaults to MEDIAKEEP_TOKEN)")
		chunkSize   = flag.String("chunk-size", "10MiB", "chunk size, e.g. 10MiB or 5242880")
		contentType = flag.String("content-type", "", "override the detected content type")
		retries     = flag.Int("retries", 3, "retry attempts per chunk")
		quiet       = flag.Bool("quiet", false, "suppress progress output")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: upload [flags] file [file ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	size, err := units.RAMInBytes(*chunkSize)
	if err != nil {
		log.Fatalf("invalid -chunk-size %q: %v", *chunkSize, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, path := range files {
		opts := uploader.Options{
			ChunkSize:  size,
			MaxRetries: *retries,
			Token:      *token,
		}
		if !*quiet {
			name := path
			opts.OnProgress = func(pct int) {
				fmt.Printf("\r%s: %3d%%", name, pct)
			}
		}

		client := uploader.New(*server+"/api/v1/media", opts)
		res, err := client.UploadFile(ctx, path, *contentType)
		if !*quiet {
			fmt.Println()
		}
		if err != nil {
			log.Fatalf("upload %s: %v", path, err)
		}
		fmt.Printf("%s -> %s (%s, %s)\n",
			path, res.URL, units.BytesSize(float64(res.Size)), res.ContentType)
	}
}
