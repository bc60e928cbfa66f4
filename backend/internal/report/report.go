// Package report pushes readings to remote collectors with a plain-text HTTP PUT.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"thermonode/backend/pkg/utils"
)

// TransportErrorCode is the code of an attempt that never got an HTTP response.
const TransportErrorCode = -1

// maxLoggedBody bounds how much of a collector's response is logged.
const maxLoggedBody = 512

type Kind int

const (
	KindSuccess Kind = iota
	KindServerError
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindServerError:
		return "server_error"
	case KindTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one push. Code is the HTTP status, or TransportErrorCode.
type Outcome struct {
	Kind Kind
	Code int
	Err  error
}

func Success(code int) Outcome { return Outcome{Kind: KindSuccess, Code: code} }

func ServerError(code int) Outcome { return Outcome{Kind: KindServerError, Code: code} }

func TransportError(err error) Outcome {
	return Outcome{Kind: KindTransportError, Code: TransportErrorCode, Err: err}
}

func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// noRedirect stops the client at the first response, so a 3xx is reported as a ServerError
// instead of being followed with a bodiless GET.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Client sends single-shot pushes. Failures are logged and returned, never retried.
// Redirects are never followed.
type Client struct {
	l    *slog.Logger
	http *http.Client
}

func NewClient(l *slog.Logger, timeout time.Duration) *Client {
	return &Client{
		l:    l.With(slog.String("component", "report-client")),
		http: &http.Client{Timeout: timeout, CheckRedirect: noRedirect},
	}
}

// WithHTTPClient replaces the underlying HTTP client. A copy is kept with redirects disabled.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *hc
	cp.CheckRedirect = noRedirect
	c.http = &cp

	return c
}

// Push sends value to address as the text/plain body of a PUT.
func (c *Client) Push(ctx context.Context, address, value string) Outcome {
	l := c.l.With(slog.String("address", address), slog.String("value", value))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, address, strings.NewReader(value))
	if err != nil {
		l.Warn("could not build report request", utils.ErrAttr(err))
		return TransportError(err)
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		l.Warn("report push failed", slog.Int("code", TransportErrorCode), utils.ErrAttr(err))
		return TransportError(err)
	}

	defer utils.LogOnError(l, resp.Body.Close, "failed to close report response body")

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.Warn("report rejected by collector",
			slog.Int("code", resp.StatusCode),
			slog.String("response", strings.TrimSpace(string(body))),
		)

		return ServerError(resp.StatusCode)
	}

	l.Info("report pushed", slog.Int("code", resp.StatusCode))
	l.Debug("collector response", slog.String("response", strings.TrimSpace(string(body))))

	return Success(resp.StatusCode)
}
