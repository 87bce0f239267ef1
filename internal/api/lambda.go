package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/apresai/hydrator/internal/pipeline"
)

// Ingester is the part of the pipeline the function handler needs.
type Ingester interface {
	Ingest(ctx context.Context, locators []string, mode pipeline.Mode, withIndex bool) []pipeline.Outcome
	Bucket() string
}

// FunctionURLHandler serves POST {urls:[...]} on a Lambda function URL.
// ?index=true or "index": true also indexes the stored objects; ?mode=
// overrides the default batch mode. When apiKey is non-empty requests must
// carry it as a bearer token.
func FunctionURLHandler(p Ingester, mode pipeline.Mode, apiKey string, logger *slog.Logger) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		switch req.RequestContext.HTTP.Method {
		case http.MethodOptions:
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusNoContent}, nil
		case http.MethodPost:
		default:
			return errorResponse(http.StatusMethodNotAllowed, "method not allowed"), nil
		}

		if apiKey != "" && !Authorized(getHeader(req.Headers, "authorization"), apiKey) {
			return errorResponse(http.StatusUnauthorized, "invalid or missing API key"), nil
		}

		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return errorResponse(http.StatusBadRequest, "body is not valid base64"), nil
			}
			body = decoded
		}

		var in Request
		if err := json.Unmarshal(body, &in); err != nil {
			return errorResponse(http.StatusBadRequest, "invalid JSON body: "+err.Error()), nil
		}
		if err := in.Validate(); err != nil {
			return errorResponse(http.StatusBadRequest, err.Error()), nil
		}

		batchMode := mode
		if m := req.QueryStringParameters["mode"]; m != "" {
			parsed, err := pipeline.ParseMode(m)
			if err != nil {
				return errorResponse(http.StatusBadRequest, err.Error()), nil
			}
			batchMode = parsed
		}
		withIndex := in.Index || req.QueryStringParameters["index"] == "true"

		logger.InfoContext(ctx, "Batch received", "count", len(in.URLs), "index", withIndex, "mode", batchMode.String())
		outcomes := p.Ingest(ctx, in.URLs, batchMode, withIndex)
		status := StatusCode(outcomes)

		return jsonResponse(status, NewResponse(p.Bucket(), outcomes)), nil
	}
}

// Authorized reports whether an Authorization header carries apiKey as a
// bearer token. Hashes are compared in constant time.
func Authorized(header, apiKey string) bool {
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || token == header {
		return false
	}
	got := sha256.Sum256([]byte(token))
	want := sha256.Sum256([]byte(apiKey))
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

func getHeader(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, v any) events.LambdaFunctionURLResponse {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "marshal response")
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func errorResponse(status int, msg string) events.LambdaFunctionURLResponse {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
