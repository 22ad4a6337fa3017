package reliability

import (
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// FromOpenAI converts go-openai HTTP failures into a *StatusError so every
// provider reports the same codes. Other errors are returned unchanged.
func FromOpenAI(err error) error {
	status, body := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, body = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, body = reqErr.HTTPStatusCode, string(reqErr.Body)
	}
	if status == 0 {
		return err
	}
	if len(body) > bodySnippetLimit {
		body = body[:bodySnippetLimit]
	}
	return &StatusError{
		Provider:   "openai",
		StatusCode: status,
		Code:       ClassifyHTTPStatus(status),
		Body:       body,
	}
}
