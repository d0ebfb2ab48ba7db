package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

type fakeSTS struct {
	in  *sts.AssumeRoleInput
	out *sts.AssumeRoleOutput
	err error
}

func (f *fakeSTS) AssumeRole(ctx context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestAssumeRoleSource(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeSTS{out: &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("AKIAEXAMPLE"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      aws.Time(exp),
	}}}
	src := &AssumeRoleSource{API: api, RoleARN: "arn:aws:iam::123456789012:role/bedrock", SessionName: "productassist", Duration: time.Hour}

	cred, err := src.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if cred.AccessKeyID != "AKIAEXAMPLE" || cred.SessionToken != "token" || !cred.Expires.Equal(exp) {
		t.Errorf("unexpected credential %+v", cred)
	}
	if aws.ToString(api.in.RoleSessionName) != "productassist" {
		t.Errorf("session name = %q", aws.ToString(api.in.RoleSessionName))
	}
	if aws.ToInt32(api.in.DurationSeconds) != 3600 {
		t.Errorf("duration = %d, want 3600", aws.ToInt32(api.in.DurationSeconds))
	}
}

func TestAssumeRoleSourceErrors(t *testing.T) {
	src := &AssumeRoleSource{API: &fakeSTS{err: errors.New("denied")}, RoleARN: "arn"}
	if _, err := src.Retrieve(context.Background()); err == nil {
		t.Error("expected error from STS failure")
	}
	src = &AssumeRoleSource{API: &fakeSTS{out: &sts.AssumeRoleOutput{}}, RoleARN: "arn"}
	if _, err := src.Retrieve(context.Background()); err == nil {
		t.Error("expected error for empty credentials")
	}
}

func TestProviderSource(t *testing.T) {
	src := &ProviderSource{Provider: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "s"}, nil
	})}
	cred, err := src.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessKeyID != "AKIA" || !cred.Expires.IsZero() {
		t.Errorf("unexpected credential %+v", cred)
	}
}

func TestAWSConfigSignsWithCredential(t *testing.T) {
	base := aws.Config{Region: "us-east-1"}
	cfg := AWSConfig(base, Credential{AccessKeyID: "AKIA9", SecretAccessKey: "s", SessionToken: "t"})
	got, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessKeyID != "AKIA9" || got.SessionToken != "t" {
		t.Errorf("unexpected credentials %+v", got)
	}
	if base.Credentials != nil {
		t.Error("base config must not be modified")
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("region = %q", cfg.Region)
	}
}
