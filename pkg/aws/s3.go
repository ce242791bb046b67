package aws

import (
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3PresignClient creates a presign client. Path-style addressing is used
// when a custom endpoint (LocalStack) is configured.
func NewS3PresignClient(cfg sdkaws.Config, usePathStyle bool) *s3.PresignClient {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return s3.NewPresignClient(client)
}
