package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/models"
	"marketplace-service/repository"
)

const (
	defaultPresignExpiry = 900 * time.Second
	maxPresignExpiry     = time.Hour
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Presigner is the subset of *s3.PresignClient used for uploads.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type ImageUploaderConfig struct {
	Bucket    string
	Prefix    string
	Endpoint  string
	CDNDomain string
}

// ImageUploader hands out presigned S3 PUT URLs so sellers upload product and
// banner images directly to the bucket.
type ImageUploader struct {
	presigner Presigner
	accounts  repository.AccountStore
	cfg       ImageUploaderConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewImageUploader(presigner Presigner, accounts repository.AccountStore, cfg ImageUploaderConfig, logger *zap.Logger) *ImageUploader {
	if cfg.Prefix == "" {
		cfg.Prefix = "uploads"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageUploader{presigner: presigner, accounts: accounts, cfg: cfg, logger: logger, now: time.Now}
}

func (u *ImageUploader) PresignUpload(ctx context.Context, sellerID string, req models.PresignRequest) (*models.PresignedUpload, error) {
	ext, ok := allowedImageTypes[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, apperrors.InvalidArgument("unsupported content type " + req.ContentType)
	}
	if u.cfg.Bucket == "" {
		return nil, apperrors.New(apperrors.KindInternal, "image uploads are not configured", nil)
	}
	if _, err := u.accounts.FindSellerByID(ctx, sellerID); err != nil {
		return nil, storeError(err, "seller not found")
	}

	expires := defaultPresignExpiry
	if req.ExpiresSeconds > 0 {
		expires = time.Duration(req.ExpiresSeconds) * time.Second
	}
	if expires > maxPresignExpiry {
		expires = maxPresignExpiry
	}

	if e := strings.ToLower(path.Ext(req.Filename)); e != "" {
		ext = e
	}
	key := fmt.Sprintf("%s/%s/%s%s", strings.Trim(u.cfg.Prefix, "/"), sellerID, uuid.NewString(), ext)

	presigned, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.cfg.Bucket),
		Key:         sdkaws.String(key),
		ContentType: sdkaws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to presign upload", fmt.Errorf("presign put object: %w", err))
	}

	headers := map[string]string{"Content-Type": req.ContentType}
	for name, values := range presigned.SignedHeader {
		if len(values) > 0 && !strings.EqualFold(name, "host") {
			headers[name] = values[0]
		}
	}

	logger.FromContext(ctx, u.logger).Info("upload presigned", zap.String("seller_id", sellerID), zap.String("key", key))
	return &models.PresignedUpload{
		UploadURL: presigned.URL,
		Key:       key,
		PublicURL: u.publicURL(key),
		Headers:   headers,
		ExpiresAt: u.now().UTC().Add(expires),
	}, nil
}

func (u *ImageUploader) publicURL(key string) string {
	switch {
	case u.cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", strings.TrimRight(u.cfg.CDNDomain, "/"), key)
	case u.cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.cfg.Endpoint, "/"), u.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.cfg.Bucket, key)
	}
}
