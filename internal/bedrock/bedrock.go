// Package bedrock holds the Bedrock runtime client plumbing shared by the
// chat and embedding providers.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/ziadkadry99/productassist/internal/credentials"
)

// Invoker is the subset of the Bedrock runtime client used here.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Runtime hands out the current client and refreshes it when a call is
// rejected for credential reasons. *credentials.Manager[Invoker]
// satisfies it.
type Runtime interface {
	Do(ctx context.Context, fn func(ctx context.Context, client Invoker) error) error
}

// Static wraps a fixed client as a Runtime. Useful in tests and for
// credentials that never rotate.
type Static struct {
	Client Invoker
}

// Do calls fn with the fixed client.
func (s Static) Do(ctx context.Context, fn func(ctx context.Context, client Invoker) error) error {
	return fn(ctx, s.Client)
}

// NewBuilder returns a credentials.Builder that creates runtime clients
// from base with each new credential.
func NewBuilder(base aws.Config) credentials.Builder[Invoker] {
	return func(c credentials.Credential) (Invoker, error) {
		if base.Region == "" {
			return nil, errors.New("bedrock client requires an AWS region")
		}
		return bedrockruntime.NewFromConfig(credentials.AWSConfig(base, c)), nil
	}
}

// InvokeJSON marshals in, invokes modelID through rt, and unmarshals the
// response body into out.
func InvokeJSON(ctx context.Context, rt Runtime, modelID string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal bedrock request: %w", err)
	}
	var resp *bedrockruntime.InvokeModelOutput
	err = rt.Do(ctx, func(ctx context.Context, client Invoker) error {
		var err error
		resp, err = client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("invoking %s: %w", modelID, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", modelID, err)
	}
	return nil
}

var transientCodes = map[string]bool{
	"ThrottlingException":         true,
	"ServiceUnavailableException": true,
	"InternalServerException":     true,
	"ModelNotReadyException":      true,
	"ModelTimeoutException":       true,
	"TooManyRequestsException":    true,
}

// IsTransient reports whether a Bedrock error is worth retrying.
func IsTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return transientCodes[apiErr.ErrorCode()]
	}
	return false
}
