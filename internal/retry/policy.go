package retry

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Policy classifies responses and transport errors as retryable.
// The condition names follow envoy's retry_on header.
type Policy struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	statusCodes    map[int]struct{}
}

// DefaultPolicy retries gateway errors, connection failures, conflicts and rate limiting.
func DefaultPolicy() *Policy {
	return &Policy{
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		statusCodes:    map[int]struct{}{http.StatusTooManyRequests: {}},
	}
}

// ParsePolicy reads a comma separated list such as "5xx,connect-failure,429".
// An empty string yields a policy that never retries.
func ParsePolicy(s string) (*Policy, error) {
	p := &Policy{statusCodes: map[int]struct{}{}}
	for _, condition := range strings.Split(s, ",") {
		condition = strings.TrimSpace(condition)
		switch condition {
		case "":
		case "5xx":
			p.serverError = true
		case "gateway-error":
			p.gatewayError = true
		case "connect-failure":
			p.connectFailure = true
		case "retriable-4xx":
			p.retriable4xx = true
		default:
			code, err := strconv.Atoi(condition)
			if err != nil || code < 100 || code > 599 {
				return nil, xerrors.Errorf("invalid retry condition: %q", condition)
			}
			p.statusCodes[code] = struct{}{}
		}
	}
	return p, nil
}

func (p *Policy) RetryResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case p.serverError && code >= 500 && code < 600:
		return true
	case p.gatewayError && code >= http.StatusBadGateway && code <= http.StatusGatewayTimeout:
		return true
	case p.retriable4xx && code == http.StatusConflict:
		return true
	}
	_, ok := p.statusCodes[code]
	return ok
}

func (p *Policy) RetryError(err error) bool {
	if !p.connectFailure && !p.serverError {
		return false
	}
	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
