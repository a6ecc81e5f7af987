// Package secret looks up named secrets such as the credential bundle and the
// JWT signing key. Deployed functions read SSM Parameter Store; local runs
// read environment variables.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ErrNotFound is returned when the named secret does not exist or is empty.
var ErrNotFound = errors.New("secret not found")

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by parameter name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver reads SecureString parameters from SSM Parameter Store.
type SSMResolver struct {
	client SSMClient
}

func NewSSMResolver(client SSMClient) *SSMResolver {
	return &SSMResolver{client: client}
}

// GetSecret returns the decrypted parameter value with surrounding whitespace removed.
func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *ssmtypes.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("ssm parameter %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || strings.TrimSpace(*out.Parameter.Value) == "" {
		return "", fmt.Errorf("ssm parameter %q has no value: %w", name, ErrNotFound)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}

// EnvResolver reads secrets from environment variables named after the last
// segment of the parameter path, e.g. "/nexrender/gdrive-credentials" is read
// from GDRIVE_CREDENTIALS.
type EnvResolver struct {
	lookup func(string) (string, bool)
}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := ParamNameToEnvVar(name)
	val, ok := r.lookup(envName)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("environment variable %q (from param %q): %w", envName, name, ErrNotFound)
	}
	return strings.TrimSpace(val), nil
}

// ParamNameToEnvVar converts a parameter path to an environment variable name.
func ParamNameToEnvVar(name string) string {
	name = strings.TrimRight(name, "/")
	last := name[strings.LastIndex(name, "/")+1:]
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(last))
}
