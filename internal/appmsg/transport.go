package appmsg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// ContentType is the media type of an encoded dictionary
	ContentType = "application/x-appmessage"

	// TxIDHeader carries the transaction id of an exchange
	TxIDHeader = "X-Transaction-ID"

	maxReplyBytes = 64 << 10
)

// HTTPTransport posts dictionaries to a companion endpoint and returns the
// response body as the reply
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	userAgent  string
}

// NewHTTPTransport creates a transport for the companion at url
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "pendulum-watch/1.0",
	}
}

// Exchange implements Transport
func (t *HTTPTransport) Exchange(ctx context.Context, txID string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &SendError{Reason: ResultInvalidArgs, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set(TxIDHeader, txID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &SendError{Reason: ResultSendTimeout, Err: err}
		}
		return nil, &SendError{Reason: ResultNotConnected, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &SendError{Reason: ResultBusy, Err: fmt.Errorf("companion returned status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &SendError{Reason: ResultSendRejected, Err: fmt.Errorf("companion returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, &SendError{Reason: ResultNotConnected, Err: fmt.Errorf("reading reply: %w", err)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
