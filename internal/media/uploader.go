package media

import (
	"bytes"
	"context"
	"fmt"

	"trekmap/internal/domain/reviewimages"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary) *CloudinaryUploader {
	return &CloudinaryUploader{cld: cld}
}

// Upload stores buf under folder using the named upload preset.
func (u *CloudinaryUploader) Upload(ctx context.Context, buf []byte, folder, preset string) (reviewimages.Asset, error) {
	resp, err := u.cld.Upload.Upload(ctx, bytes.NewReader(buf), uploader.UploadParams{
		Folder:         folder,
		UploadPreset:   preset,
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return reviewimages.Asset{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return reviewimages.Asset{}, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}

	return reviewimages.Asset{
		URL:      resp.SecureURL,
		PublicID: resp.PublicID,
		Width:    resp.Width,
		Height:   resp.Height,
		Format:   resp.Format,
		Bytes:    resp.Bytes,
	}, nil
}
