// Package apiendpoint provides the api_endpoint step: like api_call, but the
// target base URL and auth come from a named API profile instead of inline
// config.
package apiendpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/apicall"
	"github.com/loadbridge/loadbridge/pkg/template"
)

type Step struct {
	Profile models.APIProfile
	Path    string
	Method  string
	Headers map[string]string
	Body    string

	client *http.Client
}

func NewStep(config map[string]any, profiles map[string]models.APIProfile) (*Step, error) {
	profileName, _ := config["profile"].(string)
	if profileName == "" {
		profileName = models.ProfileMain
	}

	profile, ok := profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("API profile '%s' is not configured", profileName)
	}

	if profile.BaseURL == "" {
		return nil, fmt.Errorf("API profile '%s' has no base URL", profileName)
	}

	path, ok := config["path"].(string)
	if !ok || path == "" {
		return nil, errors.New("missing required field 'path'")
	}

	step := &Step{
		Profile: profile,
		Path:    path,
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	if method, ok := config["method"].(string); ok && method != "" {
		step.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				step.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		step.Body = body
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	path := template.Resolve(s.Path, run.Context)
	url := strings.TrimSuffix(s.Profile.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")

	headers := make(map[string]string, len(s.Headers)+len(s.Profile.Headers)+1)
	for k, v := range s.Profile.Headers {
		headers[k] = v
	}

	for k, v := range s.Headers {
		headers[k] = template.Resolve(v, run.Context)
	}

	if s.Profile.AuthHeader != "" && s.Profile.AuthToken != "" {
		headers[s.Profile.AuthHeader] = s.Profile.AuthToken
	}

	body := ""
	if s.Body != "" {
		body = template.Resolve(s.Body, run.Context)
	}

	logger.InfoContext(ctx, "Issuing API endpoint call",
		"profile", s.Profile.Name, "method", s.Method, "url", url)

	response, err := apicall.Do(ctx, s.client, apicall.Request{
		Method:  s.Method,
		URL:     url,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	run.LastAPIResponse = response.Body

	return &protocol.StepResult{
		Output: map[string]any{
			"status":   response.Status,
			"profile":  s.Profile.Name,
			"response": response.Body,
		},
	}, nil
}
