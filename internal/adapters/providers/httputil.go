package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"hermes/pkg/errors"
)

// maxSSELineSize caps a single SSE line at 1 MB. The default bufio.Scanner
// limit of 64 KiB is too small for long completion deltas.
const maxSSELineSize = 1 * 1024 * 1024

// maxResponseBodySize caps response bodies at 10 MB to keep rogue upstreams
// from exhausting memory.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// errorBodyLimit caps how much of an upstream error body gets read back.
const errorBodyLimit int64 = 64 * 1024

// postJSON sends a JSON POST and returns the response body bytes.
// Non-2xx statuses become ErrProviderTransport with the upstream message attached.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderTransport, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, errors.Wrapf(errors.ErrProviderTransport, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderTransport, err.Error())
	}

	return respBody, nil
}

// getJSON fetches a URL and returns the response body bytes. Used for model
// listing endpoints.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderTransport, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, errors.Wrapf(errors.ErrProviderTransport, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderTransport, err.Error())
	}

	return respBody, nil
}

// postStream sends a JSON POST and returns the response with the body left
// open for SSE consumption. The caller must close it. On non-2xx the body is
// drained, closed and turned into an error before returning.
func postStream(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderTransport, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, errors.Wrapf(errors.ErrProviderTransport, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	return resp, nil
}

// sseScanner reads Server-Sent Events payloads. It joins multi-line data
// fields, skips comments and blank lines, and returns io.EOF on stream end or
// the [DONE] sentinel used by OpenAI-compatible APIs.
type sseScanner struct {
	scanner *bufio.Scanner
}

func newSSEScanner(reader io.Reader) *sseScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &sseScanner{scanner: scanner}
}

// Next returns the next SSE data payload.
func (s *sseScanner) Next() (string, error) {
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Blank line ends an event; flush accumulated data lines
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return "", io.EOF
			}
			dataLines = append(dataLines, data)
			continue
		}

		// Other SSE fields (event:, id:, retry:) are not needed here
	}

	if err := s.scanner.Err(); err != nil {
		return "", errors.Wrap(err, "SSE scanner error")
	}

	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}

	return "", io.EOF
}
