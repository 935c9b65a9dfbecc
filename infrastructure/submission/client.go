// Package submission posts answers to quiz servers.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one submission round trip.
const DefaultTimeout = 30 * time.Second

const maxLoggedBody = 512

var errNotObject = errors.New("reply is not a JSON object")

// Client is a resty-backed Submitter. It never retries.
type Client struct {
	http   *resty.Client
	logger *logrus.Logger
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// NewClient - creates submission client
func NewClient(opts Options, logger *logrus.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{http: client, logger: logger}
}

// Submit - posts {email, answer} as JSON and parses the reply.
// A missing, null or empty "url" yields a result without NextURL.
func (c *Client) Submit(ctx context.Context, endpoint string, req entities.SubmissionRequest) (entities.SubmissionResult, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(endpoint)
	if err != nil {
		return entities.SubmissionResult{}, &entities.TransportError{Endpoint: endpoint, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   res.StatusCode(),
		"duration": res.Time(),
	}).Debug("Submission reply received")

	result, err := parseReply(res.Body())
	if err != nil {
		return entities.SubmissionResult{}, &entities.ProtocolError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode(),
			Body:       truncate(string(res.Body()), maxLoggedBody),
			Err:        err,
		}
	}
	result.StatusCode = res.StatusCode()
	return result, nil
}

// parseReply - the server is the authority: any JSON object is a valid reply
func parseReply(body []byte) (entities.SubmissionResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return entities.SubmissionResult{}, err
	}
	if fields == nil {
		return entities.SubmissionResult{}, errNotObject
	}

	var result entities.SubmissionResult
	// non-string values are treated as "no next URL"
	if raw, ok := fields["url"]; ok {
		var next string
		if json.Unmarshal(raw, &next) == nil {
			result.NextURL = next
		}
	}
	if raw, ok := fields["correct"]; ok {
		var correct bool
		if json.Unmarshal(raw, &correct) == nil {
			result.Correct = &correct
		}
	}
	if raw, ok := fields["reason"]; ok {
		var reason string
		if json.Unmarshal(raw, &reason) == nil {
			result.Reason = reason
		}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}

var _ interfaces.Submitter = (*Client)(nil)
