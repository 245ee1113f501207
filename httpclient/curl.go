package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/wonderwhisper/process"
)

// curl exit codes that map onto transport error classes.
const (
	curlCouldNotResolve = 6
	curlCouldNotConnect = 7
	curlTimeout         = 28
	curlEmptyReply      = 52
	curlRecvError       = 56
)

// curlPath sends through a curl subprocess pinned to HTTP/1.1. It shares
// nothing with the in-process pools, so a wedged Go connection cannot
// stall it.
type curlPath struct {
	binary string
	grace  time.Duration
}

func (p *curlPath) name() string { return PathCurl }

func (p *curlPath) send(ctx context.Context, out *outbound) (*Response, error) {
	dir, err := os.MkdirTemp("", "wonderwhisper-curl-*")
	if err != nil {
		return nil, NewValidationError("curl temp dir: " + err.Error())
	}
	defer func() { _ = os.RemoveAll(dir) }()

	headerFile := filepath.Join(dir, "headers")
	bodyFile := filepath.Join(dir, "body")
	args := []string{
		"--http1.1", "-sS",
		"-X", out.Method,
		"-D", headerFile,
		"-o", bodyFile,
		"-w", "%{http_code}",
		"-H", "Expect:",
	}

	names := make([]string, 0, len(out.Header))
	for k := range out.Header {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if out.Multipart != nil && strings.EqualFold(k, "Content-Type") {
			continue
		}
		for _, v := range out.Header[k] {
			args = append(args, "-H", k+": "+v)
		}
	}

	var stdin io.Reader
	switch {
	case out.Multipart != nil:
		formArgs, err := curlFormArgs(dir, out.Multipart)
		if err != nil {
			return nil, NewValidationError("curl form: " + err.Error())
		}
		args = append(args, formArgs...)
	case out.Body != nil:
		args = append(args, "--data-binary", "@-")
		stdin = bytes.NewReader(out.Body)
	}
	args = append(args, out.URL)

	res, err := process.Run(ctx, process.Command{
		Binary:      p.binary,
		Args:        args,
		Stdin:       stdin,
		GracePeriod: p.grace,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(ctx, ctx.Err())
		}
		return nil, curlExitError(res, err)
	}

	status, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
	if err != nil || status == 0 {
		return nil, NewConnectionError(fmt.Errorf("curl: unreadable status %q", res.Stdout))
	}
	rawHeaders, _ := os.ReadFile(headerFile)
	header := parseCurlHeaders(rawHeaders)
	body, err := os.ReadFile(bodyFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, NewConnectionError(fmt.Errorf("curl: read body: %w", err))
	}

	result := &Response{StatusCode: status, Header: header, Body: body, Path: PathCurl}
	if classErr := ClassifyStatusCode(status, header, body); classErr != nil {
		return result, classErr
	}
	return result, nil
}

// curlFormArgs writes file parts into dir and returns the -F arguments.
// Plain fields use --form-string so values starting with @ or < stay literal.
func curlFormArgs(dir string, m *MultipartBody) ([]string, error) {
	var args []string
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--form-string", k+"="+m.Fields[k])
	}
	for i, f := range m.Files {
		name := filepath.Base(f.FileName)
		if name == "." || name == string(filepath.Separator) || name == "" {
			name = "upload"
		}
		local := filepath.Join(dir, fmt.Sprintf("part%d-%s", i, name))
		if err := os.WriteFile(local, f.Data, 0o600); err != nil {
			return nil, err
		}
		form := f.FieldName + "=@" + local + ";filename=" + name
		if f.ContentType != "" {
			form += ";type=" + f.ContentType
		}
		args = append(args, "-F", form)
	}
	return args, nil
}

func curlExitError(res *process.Result, err error) error {
	if res == nil {
		return NewConnectionError(err)
	}
	msg := fmt.Errorf("curl exit %d: %s: %w", res.ExitCode, strings.TrimSpace(string(res.Stderr)), err)
	switch res.ExitCode {
	case curlCouldNotResolve:
		return NewDNSError(msg)
	case curlTimeout:
		return NewTimeoutError(msg)
	case curlCouldNotConnect, curlEmptyReply, curlRecvError:
		return NewConnectionError(msg)
	default:
		return NewConnectionError(msg)
	}
}

// parseCurlHeaders reads the last header block of a -D dump. Earlier
// blocks belong to redirects or interim responses.
func parseCurlHeaders(raw []byte) http.Header {
	header := make(http.Header)
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(text), "\n\n")
	last := blocks[len(blocks)-1]
	for i, line := range strings.Split(last, "\n") {
		if i == 0 {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		header.Add(textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(k)), strings.TrimSpace(v))
	}
	return header
}
