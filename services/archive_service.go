package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/models"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"gorm.io/gorm"
)

const archiveFolder = "smartscore_imports"

func ArchiveEnabled() bool {
	return config.Config("CLOUDINARY_URL") != ""
}

func uploadImportFile(ctx context.Context, batch *models.ImportBatch, content []byte) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("%s/%s_%s", batch.Kind, batch.CreatedAt.Format("20060102T150405"), batch.ID),
		Folder:       archiveFolder,
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(content), uploadParams)
	if err != nil {
		return "", err
	}
	return uploadResult.SecureURL, nil
}

// ArchiveImportFile uploads the raw CSV of a batch to Cloudinary and stores
// the resulting URL on the batch. It is meant to run in its own goroutine.
func ArchiveImportFile(db *gorm.DB, batch *models.ImportBatch, content []byte) {
	if !ArchiveEnabled() {
		return
	}

	url, err := uploadImportFile(context.Background(), batch, content)
	if err != nil {
		log.Printf("🔥 Failed to archive import %s to Cloudinary: %v", batch.ID, err)
		return
	}
	if err := SetImportArchiveURL(context.Background(), db, batch.ID, url); err != nil {
		log.Printf("🔥 Failed to save archive URL for import %s: %v", batch.ID, err)
		return
	}
	log.Printf("✅ Archived %s import %s", batch.Kind, batch.ID)
}
