package config

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/kelseyhightower/envconfig"
)

// LoadFromEnvironment is Load with JWT_SECRET_NAME resolved through AWS
// Secrets Manager in the AWS_REGION / AWS_PROFILE account.
func LoadFromEnvironment() (*Config, error) {
	var awsCfg AWSConfig
	if err := envconfig.Process("AWS", &awsCfg); err != nil {
		return nil, fmt.Errorf("failed to process AWS config: %w", err)
	}
	return LoadWithSecrets(SecretsManagerFetcher(awsCfg.Region, awsCfg.Profile))
}

// SecretsManagerFetcher returns a SecretFetcher backed by AWS Secrets Manager.
// The session is created lazily so that processes without JWT_SECRET_NAME never
// touch AWS credentials.
func SecretsManagerFetcher(region, profile string) SecretFetcher {
	return func(name string) (string, error) {
		opts := session.Options{
			Config: aws.Config{Region: aws.String(region)},
		}
		if profile != "" {
			opts.Profile = profile
			opts.SharedConfigState = session.SharedConfigEnable
		}

		sess, err := session.NewSessionWithOptions(opts)
		if err != nil {
			return "", fmt.Errorf("failed to create AWS session: %w", err)
		}

		svc := secretsmanager.New(sess)

		result, err := svc.GetSecretValue(&secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name),
		})
		if err != nil {
			return "", fmt.Errorf("failed to retrieve secret '%s': %w", name, err)
		}

		if result.SecretString == nil {
			return "", fmt.Errorf("secret '%s' has no string value", name)
		}

		return *result.SecretString, nil
	}
}
