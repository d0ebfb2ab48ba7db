package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// AssumeRoleAPI is the subset of the STS client used here.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AssumeRoleSource obtains temporary credentials by assuming an IAM role.
type AssumeRoleSource struct {
	API         AssumeRoleAPI
	RoleARN     string
	SessionName string
	// Duration of the issued credentials. Zero lets STS pick (one hour).
	Duration time.Duration
}

// Retrieve assumes the role.
func (s *AssumeRoleSource) Retrieve(ctx context.Context) (Credential, error) {
	in := &sts.AssumeRoleInput{
		RoleArn:         aws.String(s.RoleARN),
		RoleSessionName: aws.String(s.SessionName),
	}
	if s.Duration > 0 {
		in.DurationSeconds = aws.Int32(int32(s.Duration / time.Second))
	}
	out, err := s.API.AssumeRole(ctx, in)
	if err != nil {
		return Credential{}, fmt.Errorf("assuming role %s: %w", s.RoleARN, err)
	}
	if out.Credentials == nil {
		return Credential{}, fmt.Errorf("assuming role %s: response has no credentials", s.RoleARN)
	}
	return Credential{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}, nil
}

// ProviderSource adapts any AWS credentials provider, such as the default
// chain from config.LoadDefaultConfig, for use when no role is assumed.
type ProviderSource struct {
	Provider aws.CredentialsProvider
}

// Retrieve asks the wrapped provider.
func (s *ProviderSource) Retrieve(ctx context.Context) (Credential, error) {
	if s.Provider == nil {
		return Credential{}, errors.New("no AWS credentials provider configured")
	}
	c, err := s.Provider.Retrieve(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("retrieving AWS credentials: %w", err)
	}
	cred := Credential{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
	}
	if c.CanExpire {
		cred.Expires = c.Expires
	}
	return cred, nil
}

// AWSConfig returns a copy of base whose requests are signed with c.
func AWSConfig(base aws.Config, c Credential) aws.Config {
	cfg := base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(
		awscreds.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken))
	return cfg
}

var expiredCodes = map[string]bool{
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"InvalidSignatureException":   true,
	"AccessDeniedException":       true,
}

// IsExpiredError reports whether err means the request was rejected
// because of the credential it was signed with.
func IsExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrExpired) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return expiredCodes[apiErr.ErrorCode()]
	}
	return false
}
