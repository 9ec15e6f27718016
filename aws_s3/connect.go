package aws_s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	// "http://127.0.0.1:9000"
	HostEndpointUrl string `json:"host_endpoint_url"`
	// "us-east-1"
	Region   string `json:"region"`
	Username string `json:"username"`
	Password string `json:"password"`
	// Bucket holding the blobs.
	Bucket string `json:"bucket"`
	// UsePathStyle is required by most S3 compatible servers, e.g. minio.
	UsePathStyle bool `json:"use_path_style,omitempty"`
}

// Connect to minio Server endpoint.
func Connect(config Config) *s3.Client {
	client := s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		if config.HostEndpointUrl != "" {
			o.BaseEndpoint = aws.String(config.HostEndpointUrl)
		}
		o.Credentials = credentials.NewStaticCredentialsProvider(config.Username, config.Password, "")
		o.UsePathStyle = config.UsePathStyle
	})
	return client
}
