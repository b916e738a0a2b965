package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAttempts bounds DownloadWithRetry.
const DefaultRetryAttempts = 3

var (
	// RetryDelay is the wait before the second attempt; it doubles after each
	// further failure.
	RetryDelay = 5 * time.Second
	// ReportEvery throttles byte progress callbacks.
	ReportEvery = 250 * time.Millisecond
	// Client performs every download. Product archives run to gigabytes, so
	// it has no overall timeout; cancel the context instead.
	Client = &http.Client{}
)

// ErrBadStatus wraps every non-2xx response. 4xx responses are not retried.
var ErrBadStatus = errors.New("bad status")

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %s", ErrBadStatus, e.status) }
func (e *statusError) Unwrap() error { return ErrBadStatus }

func (e *statusError) permanent() bool { return e.code >= 400 && e.code < 500 }

// FileName is the last path element of rawURL, or "download".
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	switch name := path.Base(u.Path); name {
	case ".", "/", "":
		return "download"
	default:
		return name
	}
}

// progressWriter counts bytes and reports them at most every ReportEvery.
type progressWriter struct {
	w      io.Writer
	done   int64
	total  int64
	report ByteProgressCallback
	last   time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.report != nil && time.Since(p.last) >= ReportEvery {
		p.report(p.done, p.total)
		p.last = time.Now()
	}
	return n, err
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func partialSize(name string) int64 {
	if fi, err := os.Stat(name); err == nil {
		return fi.Size()
	}
	return 0
}

// rangeTotal reads the complete length from a "bytes */N" or
// "bytes a-b/N" Content-Range header.
func rangeTotal(h string) (int64, bool) {
	_, size, ok := strings.Cut(h, "/")
	if !ok || !strings.HasPrefix(h, "bytes ") {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	return n, err == nil && n >= 0
}

// DownloadFile writes rawURL to destPath. A partial destPath is resumed with
// a Range request; a server that ignores the range restarts the file. A
// partial file that does not match the remote length is discarded.
func DownloadFile(ctx context.Context, destPath, rawURL string, report ByteProgressCallback) error {
	have := partialSize(destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if have > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(have, 10)+"-")
	}
	resp, err := Client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		have = 0
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		if size, ok := rangeTotal(resp.Header.Get("Content-Range")); ok && size == have {
			if report != nil {
				report(have, have)
			}
			return nil
		}
		resp.Body.Close()
		log.Printf("Discarding %s: %d bytes do not match the remote file", destPath, have)
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("remove stale %s: %w", destPath, err)
		}
		return DownloadFile(ctx, destPath, rawURL, report)
	default:
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	total := resp.ContentLength
	if total > 0 {
		total += have
	}
	out, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", destPath, err)
	}
	pw := &progressWriter{w: out, done: have, total: total, report: report, last: time.Now()}
	_, err = io.Copy(pw, ctxReader{ctx: ctx, r: resp.Body})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	if report != nil {
		report(pw.done, total)
	}
	return nil
}

// DownloadWithRetry calls DownloadFile up to DefaultRetryAttempts times,
// resuming the partial file each time. Cancellation and 4xx responses end
// it at once.
func DownloadWithRetry(ctx context.Context, destPath, rawURL string, report ByteProgressCallback) error {
	var err error
	delay := RetryDelay
	for attempt := 1; ; attempt++ {
		err = DownloadFile(ctx, destPath, rawURL, report)
		var se *statusError
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.As(err, &se) && se.permanent():
			return err
		case attempt == DefaultRetryAttempts:
			return fmt.Errorf("download failed after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// FormatBytes renders n with a binary unit, e.g. "1.5 KB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate.
func FormatSpeed(bytesPerSec int64) string { return FormatBytes(bytesPerSec) + "/s" }
