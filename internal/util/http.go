package util

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is returned when a server answers with anything but 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string // first bytes of the response body, for context
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status '%s' fetching %s", e.Status, e.URL)
	}
	return fmt.Sprintf("bad status '%s' fetching %s: %s", e.Status, e.URL, e.Body)
}

// DownloadTo executes a pre-built HTTP request and streams the body into w.
// It handles response closing and treats every status except 200 as a failure.
// The caller is responsible for creating the request (including context and headers).
func DownloadTo(client *http.Client, req *http.Request, w io.Writer) (int64, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read some of the body for context on error
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &StatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed reading body from %s: %w", req.URL.String(), err)
	}
	return n, nil
}

// CheckStatus executes req and returns the response status code without
// keeping the body. Only 200 counts as success.
func CheckStatus(client *http.Client, req *http.Request) (int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.StatusCode, nil
}

// DefaultHTTPClient creates the client used for pack downloads. Packs are
// large and the batch has no per-item deadline, so no timeout is set.
func DefaultHTTPClient() *http.Client {
	return &http.Client{}
}
