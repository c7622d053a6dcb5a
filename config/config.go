// Package config loads the shared config.json that every ecs Lambda ships
// with and turns it into AWS SDK clients.
//
// The file holds three fields:
//
//	{
//	  "region-name":  "us-west-2",
//	  "endpoint-url":  "https://dynamodb.us-west-2.amazonaws.com",
//	  "admin-email":  "ops@example.com"
//	}
//
// Any field value of the form "ssm:/path/to/param" is resolved through
// Systems Manager Parameter Store at load time, so secrets never have to
// live in the file itself.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// EnvConfigFile overrides the search path for config.json.
const EnvConfigFile = "ECS_CONFIG_FILE"

// ErrNotFound is returned by Load when no config.json exists at any of the
// searched locations.
var ErrNotFound = errors.New("config.json not found")

const ssmPrefix = "ssm:"

// Options is the parsed config.json record.
type Options struct {
	// RegionName is the AWS region all clients are built for.
	RegionName string `json:"region-name"`

	// EndpointURL overrides the DynamoDB endpoint. Empty means the SDK
	// default for the region; set it to point at DynamoDB Local.
	EndpointURL string `json:"endpoint-url"`

	// AdminEmail is the operator contact used for alerts and the email
	// footer.
	AdminEmail string `json:"admin-email"`
}

// ParameterGetter is the slice of the SSM client used to resolve ssm:
// values.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Load finds and parses config.json. Search order: $ECS_CONFIG_FILE, then
// ./config.json, then /opt/config.json (where a Lambda layer lands).
func Load(ctx context.Context) (*Options, error) {
	path, err := findConfig()
	if err != nil {
		return nil, err
	}
	return LoadFile(ctx, path)
}

// LoadFile parses the config at an explicit path. ssm: values are resolved
// with a Parameter Store client built from the default credential chain.
func LoadFile(ctx context.Context, path string) (*Options, error) {
	return LoadFileWith(ctx, path, nil)
}

// LoadFileWith is LoadFile with an injected Parameter Store client. A nil
// params builds the real client, and only if an ssm: value is present.
func LoadFileWith(ctx context.Context, path string, params ParameterGetter) (*Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var opts Options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := opts.resolve(ctx, params); err != nil {
		return nil, err
	}

	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &opts, nil
}

func findConfig() (string, error) {
	candidates := []string{"config.json", "/opt/config.json"}
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(candidates, ", "))
}

// resolve replaces ssm: field values in place. Runs before validate so a
// parameter resolving to "" still fails as a missing field.
func (o *Options) resolve(ctx context.Context, params ParameterGetter) error {
	fields := []*string{&o.RegionName, &o.EndpointURL, &o.AdminEmail}

	for _, f := range fields {
		name, ok := strings.CutPrefix(*f, ssmPrefix)
		if !ok {
			continue
		}

		if params == nil {
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("load AWS config for SSM: %w", err)
			}
			params = ssm.NewFromConfig(cfg)
		}

		out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("resolve SSM parameter %s: %w", name, err)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return fmt.Errorf("SSM parameter %s has no value", name)
		}
		*f = *out.Parameter.Value
	}
	return nil
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.RegionName) == "" {
		return fmt.Errorf(`missing "region-name"`)
	}
	if strings.TrimSpace(o.AdminEmail) == "" {
		return fmt.Errorf(`missing "admin-email"`)
	}
	return nil
}
