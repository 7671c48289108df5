package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	getter "github.com/hashicorp/go-getter"

	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/logger"
)

// FetchResult is the outcome of the fetch step.
type FetchResult struct {
	// Outcome tells whether the remote bytes or the fallback block were written.
	Outcome domain.Outcome
	// Path is where the script was written.
	Path string
	// Size is the number of bytes written.
	Size int
	// Err is the download failure that caused the fallback; nil when fetched.
	Err error
}

// Fetcher places the script at target.
type Fetcher interface {
	Fetch(ctx context.Context, source, target string) (*FetchResult, error)
}

// ScriptFetcher downloads the script with go-getter into a scratch
// directory and swaps it into place with go-update. Any download failure
// switches to the fallback block; a cancelled context or a failure to write
// the target is returned as an error.
type ScriptFetcher struct {
	fallback []byte
}

// NewScriptFetcher returns a fetcher that writes fallback when the download fails.
func NewScriptFetcher(fallback []byte) *ScriptFetcher {
	return &ScriptFetcher{fallback: fallback}
}

// Fetch implements Fetcher.
func (f *ScriptFetcher) Fetch(ctx context.Context, source, target string) (*FetchResult, error) {
	data, downloadErr := f.download(ctx, source)
	if downloadErr != nil {
		// An interrupted run stops here instead of handing off to the placeholder.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download %s: %w", source, ctxErr)
		}

		logger.WarnKV(ctx, "Script download failed, writing the fallback block",
			"source", source, "error", downloadErr)

		if err := applyScript(target, f.fallback); err != nil {
			return nil, fmt.Errorf("write fallback script: %w", err)
		}

		return &FetchResult{
			Outcome: domain.OutcomeFallbackUsed,
			Path:    target,
			Size:    len(f.fallback),
			Err:     downloadErr,
		}, nil
	}

	if err := applyScript(target, data); err != nil {
		return nil, fmt.Errorf("write fetched script: %w", err)
	}

	return &FetchResult{
		Outcome: domain.OutcomeFetched,
		Path:    target,
		Size:    len(data),
	}, nil
}

// download fetches source into a temporary directory and returns its bytes.
func (f *ScriptFetcher) download(ctx context.Context, source string) ([]byte, error) {
	temporaryDirectory, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = os.RemoveAll(temporaryDirectory)
	}()

	destination := filepath.Join(temporaryDirectory, "download")

	client := &getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  destination,
		Pwd:  temporaryDirectory,
		Mode: getter.ClientModeFile,
	}

	if err = client.Get(); err != nil {
		return nil, fmt.Errorf("get %s: %w", source, err)
	}

	return os.ReadFile(destination)
}

// applyScript atomically replaces target with data and leaves it with DefaultScriptMode.
func applyScript(target string, data []byte) error {
	info, err := os.Stat(target)

	switch {
	case errors.Is(err, os.ErrNotExist):
		// go-update renames the current file aside before swapping, so it must exist.
		var placeholder *os.File

		placeholder, err = os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY, DefaultScriptMode)
		if err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	case err != nil:
		return err
	case !info.Mode().IsRegular():
		return fmt.Errorf("%s: %w", target, errNotRegularFile)
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultScriptMode,
	}

	return goupdate.Apply(bytes.NewReader(data), options)
}
