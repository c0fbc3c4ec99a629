package retry

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries requests on the Base round tripper according to Policy.
// Requests with a body are replayed through GetBody, so bodies built by
// http.NewRequest from bytes or strings are safe to retry.
//
// PerTryTimeout bounds each attempt including reading its response body. Zero
// leaves attempts bounded only by the request context.
type Transport struct {
	Base          http.RoundTripper
	Backoff       Backoff
	Policy        *Policy
	PerTryTimeout time.Duration
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()
	for attempt := uint(0); ; attempt++ {
		if attempt > 0 {
			rewound, err := rewind(request)
			if err != nil {
				return nil, err
			}
			request = rewound
		}

		response, cancel, err := t.try(ctx, request)
		retry := t.Policy != nil && ((err != nil && t.Policy.RetryError(err)) || (err == nil && t.Policy.RetryResponse(response)))
		if !retry {
			return withCancel(response, err, cancel)
		}

		delay, ok := t.backoff().Delay(attempt)
		if !ok || (request.Body != nil && request.GetBody == nil) {
			return withCancel(response, err, cancel)
		}
		if response != nil {
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
		}
		cancel()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) try(ctx context.Context, request *http.Request) (*http.Response, context.CancelFunc, error) {
	if t.PerTryTimeout <= 0 {
		response, err := t.base().RoundTrip(request)
		return response, func() {}, err
	}

	tryCtx, cancel := context.WithTimeout(ctx, t.PerTryTimeout)
	response, err := t.base().RoundTrip(request.WithContext(tryCtx))
	return response, cancel, err
}

// withCancel ties the attempt's context to the response body so the caller can
// still read it after RoundTrip returns.
func withCancel(response *http.Response, err error, cancel context.CancelFunc) (*http.Response, error) {
	if err != nil || response == nil || response.Body == nil {
		cancel()
		return response, err
	}
	response.Body = &cancelOnClose{ReadCloser: response.Body, cancel: cancel}
	return response, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func rewind(request *http.Request) (*http.Request, error) {
	if request.GetBody == nil {
		return request, nil
	}
	body, err := request.GetBody()
	if err != nil {
		return nil, xerrors.Errorf("failed to rewind request body: %w", err)
	}
	clone := request.Clone(request.Context())
	clone.Body = body
	return clone, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) backoff() Backoff {
	if t.Backoff != nil {
		return t.Backoff
	}
	return Never{}
}
