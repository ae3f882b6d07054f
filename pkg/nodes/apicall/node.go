// Package apicall performs the outbound HTTP request of an api_call node.
package apicall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/formflow/pkg/httpclient"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/ssrf"
	"github.com/dukex/formflow/pkg/template"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 600 * time.Second
	AsyncTimeout   = 5 * time.Second
	MaxRetries     = 10
	MaxRetryDelay  = 60 * time.Second
)

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"api-key":       {},
	"x-api-key":     {},
	"token":         {},
	"x-token":       {},
}

type Executor struct {
	client httpclient.Doer
	guard  ssrf.Validator
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewExecutor(client httpclient.Doer, guard ssrf.Validator, logger *slog.Logger) *Executor {
	return &Executor{
		client: client,
		guard:  guard,
		logger: logger.With("module", "apicall"),
		sleep:  sleepContext,
	}
}

// Execute sends the request described by config. Non-2xx responses and network
// errors are retried; SSRF rejections are not.
func (e *Executor) Execute(
	ctx context.Context,
	exec *models.Execution,
	node *models.Node,
	config models.APICallConfig,
) (models.StepOutcome, error) {
	req, err := e.buildRequest(exec.Context, config)
	if err != nil {
		exec.AppendLog("API call misconfigured", map[string]any{"node_id": node.ID, "error": err.Error()})

		return models.StepOutcome{Success: false, Message: err.Error()}, nil
	}

	logger := e.logger.With("execution_id", exec.ID, "node_id", node.ID, "method", req.Method, "url", req.URL)

	if config.Async {
		if blocked := e.checkTarget(ctx, exec, node, req, logger); blocked != nil {
			return *blocked, nil
		}

		go e.dispatchAsync(context.WithoutCancel(ctx), req, logger)

		exec.AppendLog("API call dispatched", map[string]any{
			"node_id": node.ID,
			"method":  req.Method,
			"url":     req.URL,
			"headers": MaskHeaders(req.Headers),
			"async":   true,
		})

		return models.StepOutcome{Success: true}, nil
	}

	attempts := 1 + clamp(config.RetryCount, 0, MaxRetries)
	retryDelay := min(time.Duration(max(config.RetryDelay, 0))*time.Second, MaxRetryDelay)

	var (
		resp    *httpclient.Response
		callErr error
		made    int
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && retryDelay > 0 {
			if err := e.sleep(ctx, retryDelay); err != nil {
				callErr = err

				break
			}
		}

		if blocked := e.checkTarget(ctx, exec, node, req, logger); blocked != nil {
			return *blocked, nil
		}

		made = attempt
		resp, callErr = e.client.Do(ctx, req)

		if callErr == nil && resp.OK() {
			break
		}

		logger.WarnContext(ctx, "api call attempt failed", "attempt", attempt, "of", attempts, "error", callErr, "status", statusOf(resp))
	}

	exec.Context[models.ContextKeyLastAPIResponse] = responseRecord(resp, callErr)

	entry := map[string]any{
		"node_id":  node.ID,
		"method":   req.Method,
		"url":      req.URL,
		"headers":  MaskHeaders(req.Headers),
		"attempts": made,
	}

	if callErr != nil {
		entry["error"] = callErr.Error()
		exec.AppendLog("API call failed", entry)

		return models.StepOutcome{Success: false, Message: fmt.Sprintf("request failed after %d attempts: %v", made, callErr)}, nil
	}

	entry["status"] = resp.StatusCode

	if !resp.OK() {
		exec.AppendLog("API call failed", entry)

		return models.StepOutcome{Success: false, Message: fmt.Sprintf("HTTP %d after %d attempts", resp.StatusCode, made)}, nil
	}

	exec.AppendLog("API call succeeded", entry)
	logger.DebugContext(ctx, "api call succeeded", "status", resp.StatusCode, "attempts", made)

	return models.StepOutcome{Success: true}, nil
}

func (e *Executor) buildRequest(ctx map[string]any, config models.APICallConfig) (httpclient.Request, error) {
	url := strings.TrimSpace(template.Interpolate(config.URL, ctx))
	if url == "" {
		return httpclient.Request{}, errors.New("api_call node has no url")
	}

	bodyTemplate, err := config.BodyTemplate()
	if err != nil {
		return httpclient.Request{}, err
	}

	timeout := DefaultTimeout
	if config.Timeout > 0 {
		timeout = min(time.Duration(config.Timeout)*time.Second, MaxTimeout)
	}

	method := strings.ToUpper(strings.TrimSpace(config.Method))
	if method == "" {
		method = "GET"
	}

	return httpclient.Request{
		Method:    method,
		URL:       url,
		Headers:   template.ResolveHeaders(config.Headers, ctx),
		Body:      template.Interpolate(bodyTemplate, ctx),
		Timeout:   timeout,
		VerifyTLS: config.ShouldVerifySSL(),
	}, nil
}

// checkTarget returns a failed outcome when the guard rejects the request URL.
func (e *Executor) checkTarget(
	ctx context.Context,
	exec *models.Execution,
	node *models.Node,
	req httpclient.Request,
	logger *slog.Logger,
) *models.StepOutcome {
	err := e.guard.Check(ctx, req.URL)
	if err == nil {
		return nil
	}

	logger.WarnContext(ctx, "api call blocked", "error", err)

	exec.Context[models.ContextKeyLastAPIResponse] = map[string]any{
		"status": 0,
		"body":   "",
		"error":  err.Error(),
	}
	exec.AppendLog("API call blocked", map[string]any{
		"node_id": node.ID,
		"url":     req.URL,
		"reason":  err.Error(),
	})

	return &models.StepOutcome{Success: false, Message: err.Error()}
}

func (e *Executor) dispatchAsync(ctx context.Context, req httpclient.Request, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, AsyncTimeout)
	defer cancel()

	req.Timeout = AsyncTimeout

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		logger.WarnContext(ctx, "async api call failed", "error", err)

		return
	}

	logger.DebugContext(ctx, "async api call finished", "status", resp.StatusCode)
}

// MaskHeaders hides credentials before headers are written to logs.
func MaskHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))

	for key, value := range headers {
		if _, ok := sensitiveHeaders[strings.ToLower(key)]; !ok {
			masked[key] = value

			continue
		}

		if len(value) > 4 {
			masked[key] = value[:4] + "***"
		} else {
			masked[key] = "***"
		}
	}

	return masked
}

func responseRecord(resp *httpclient.Response, err error) map[string]any {
	if resp == nil {
		record := map[string]any{"status": 0, "body": ""}
		if err != nil {
			record["error"] = err.Error()
		}

		return record
	}

	record := map[string]any{
		"status": resp.StatusCode,
		"body":   string(resp.Body),
	}

	var decoded any
	if json.Unmarshal(resp.Body, &decoded) == nil {
		record["json"] = decoded
	}

	if err != nil {
		record["error"] = err.Error()
	}

	return record
}

func statusOf(resp *httpclient.Response) int {
	if resp == nil {
		return 0
	}

	return resp.StatusCode
}

func clamp(value, low, high int) int {
	return max(low, min(value, high))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
