// Package report delivers run results to a callback endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"snapshot-matcher/internal/retry"
	"time"

	"golang.org/x/xerrors"
)

var RejectedError = errors.New("callback rejected")

type CaseResult struct {
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	Device       string  `json:"device"`
	Outcome      string  `json:"outcome"`
	Message      string  `json:"message,omitempty"`
	ReferenceURL string  `json:"referenceURL,omitempty"`
	CandidateURL string  `json:"candidateURL,omitempty"`
	DiffURL      string  `json:"diffURL,omitempty"`
	DiffAmount   float64 `json:"diffAmount"`
	PerPixel     float64 `json:"perPixelTolerance"`
	Overall      float64 `json:"overallTolerance"`
}

type Summary struct {
	Manifest string       `json:"manifest"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Recorded int          `json:"recorded"`
	Cases    []CaseResult `json:"cases"`
}

type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook sends through a retrying transport. Each attempt gets its own
// deadline and the client timeout bounds the whole exchange, retries included.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL: url,
		Client: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &retry.Transport{
				Base:          http.DefaultTransport,
				Backoff:       retry.Exponential{Base: 10 * time.Millisecond, Max: time.Second, Attempts: 3},
				Policy:        retry.DefaultPolicy(),
				PerTryTimeout: time.Second,
			},
		},
	}
}

func (w *Webhook) Send(ctx context.Context, summary *Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return xerrors.Errorf("failed to marshal summary: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, w.URL, bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := w.client().Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= 300 {
		return xerrors.Errorf("%s returned %d: %w", w.URL, response.StatusCode, RejectedError)
	}
	return nil
}

func (w *Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}
