package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/docattest/internal/filex"
	"github.com/dmitrijs2005/docattest/internal/netx"
)

const downloadDir = "downloads"

// Upload stores a local file on the server and prints its content hash,
// ready for publish.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	up, err := netx.UploadDocument(ctx, a.config.ServerHTTPAddr, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s\n", up.Filename)
	fmt.Fprintf(a.out, "Content hash: %s\n", up.ContentHash)
	return nil
}

// Fetch downloads a stored document into ./downloads/<hash> for review.
func (a *App) Fetch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	url, err := netx.ContentURL(ctx, a.config.ServerHTTPAddr, args[0])
	if err != nil {
		return err
	}

	var n int64
	path, err := filex.WriteInto(downloadDir, args[0], func(w io.Writer) (err error) {
		n, err = netx.Download(ctx, url, w)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", n, path)
	return nil
}
