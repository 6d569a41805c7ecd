package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"

	"github.com/faro-networks/faro/pkg/util"
)

// Upload copies a local file to remoteName on the device, bounded by the
// transfer timeout. Failures wrap ErrTransferFailed.
func (s *Session) Upload(ctx context.Context, localPath, remoteName string) error {
	return s.transfer(ctx, fmt.Sprintf("upload %s", remoteName), func(cli *sftp.Client) error {
		src, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := cli.Create(remoteName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	})
}

// Download copies remoteName from the device to localPath, bounded by the
// transfer timeout. Failures wrap ErrTransferFailed.
func (s *Session) Download(ctx context.Context, remoteName, localPath string) error {
	return s.transfer(ctx, fmt.Sprintf("download %s", remoteName), func(cli *sftp.Client) error {
		src, err := cli.Open(remoteName)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.Create(localPath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			os.Remove(localPath)
			return err
		}
		return dst.Close()
	})
}

// transfer runs one SFTP operation on a fresh subsystem client. The
// client is torn down when the deadline expires, which unblocks any copy
// in flight.
func (s *Session) transfer(ctx context.Context, what string, fn func(*sftp.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TransferTimeout)
	defer cancel()

	cli, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("%s on %s: opening sftp: %v: %w", what, s.host, err, util.ErrTransferFailed)
	}
	defer cli.Close()

	stop := context.AfterFunc(ctx, func() { cli.Close() })
	defer stop()

	if err := fn(cli); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s on %s: %w", what, s.host, util.ErrTimeout)
		}
		return fmt.Errorf("%s on %s: %v: %w", what, s.host, err, util.ErrTransferFailed)
	}
	return nil
}
