package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
)

// Transfer copies whole files between the local host and a remote one.
type Transfer interface {
	Download(ctx context.Context, remotePath, localPath string) error
	Upload(ctx context.Context, localPath, remotePath string) error
}

// Remote edits a file on another host through a local working copy. Saved
// chunks land in the working copy; Sync uploads it.
type Remote struct {
	*File
	ctx        context.Context
	transfer   Transfer
	remotePath string
	label      string
	dir        string
	pending    bool
}

// OpenRemote downloads remotePath into a private temporary directory and
// opens the copy. label is what Name reports, usually "user@host:/path".
// ctx also bounds every later upload, so cancelling it aborts a Sync that
// is stuck on the network.
func OpenRemote(ctx context.Context, t Transfer, label, remotePath string, readOnly bool) (*Remote, error) {
	dir, err := os.MkdirTemp("", "hexit-*")
	if err != nil {
		return nil, err
	}
	local := filepath.Join(dir, path.Base(remotePath))

	log.Printf("[remote] downloading %s to %s", label, local)
	if err := t.Download(ctx, remotePath, local); err != nil {
		return nil, errors.Join(fmt.Errorf("download %s: %w", label, err), os.RemoveAll(dir))
	}
	f, err := OpenFile(local, readOnly)
	if err != nil {
		return nil, errors.Join(err, os.RemoveAll(dir))
	}

	return &Remote{
		File:       f,
		ctx:        ctx,
		transfer:   t,
		remotePath: remotePath,
		label:      label,
		dir:        dir,
	}, nil
}

func (r *Remote) Name() string { return r.label }

func (r *Remote) Write(p []byte) error {
	if err := r.File.Write(p); err != nil {
		return err
	}
	if !r.ReadOnly() && len(p) > 0 {
		r.pending = true
	}
	return nil
}

// Sync flushes the working copy and uploads it when it holds unsent writes.
// A failed upload stays pending so the next Sync retries it.
func (r *Remote) Sync() error {
	if err := r.File.Sync(); err != nil {
		return err
	}
	if !r.pending {
		return nil
	}
	log.Printf("[remote] uploading %s", r.label)
	if err := r.transfer.Upload(r.ctx, r.File.Name(), r.remotePath); err != nil {
		return fmt.Errorf("upload %s: %w", r.label, err)
	}
	r.pending = false
	return nil
}

// Close closes the working copy and removes it.
func (r *Remote) Close() error {
	return errors.Join(r.File.Close(), os.RemoveAll(r.dir))
}
