package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type importFunc func(ctx context.Context, r io.Reader) (int, error)

func readUpload(c *fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, services.ValidationError("A CSV file is required in form field \"file\"")
	}
	limit := config.BulkUploadMaxBytes()
	if fileHeader.Size > limit {
		return "", nil, services.ValidationError("File is too large; the limit is %d bytes", limit)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(content)) > limit {
		return "", nil, services.ValidationError("File is too large; the limit is %d bytes", limit)
	}
	return fileHeader.Filename, content, nil
}

// runImport reads the upload, runs the import and records the batch whether
// it was committed or rejected.
func runImport(c *fiber.Ctx, kind string, examID *uuid.UUID, run importFunc) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	fileName, content, err := readUpload(c)
	if err != nil {
		return respondError(c, err)
	}

	count, importErr := run(c.UserContext(), bytes.NewReader(content))

	meta := services.ImportMeta{Kind: kind, FileName: fileName, UploadedByID: principal.UserID, ExamID: examID}
	batch, err := services.RecordImportBatch(c.UserContext(), database.DB, meta, count, importErr)
	if err != nil {
		log.Printf("⚠️ Failed to record %s import: %v", kind, err)
	} else if services.ArchiveEnabled() {
		go services.ArchiveImportFile(database.DB, batch, content)
	}

	if importErr != nil {
		return respondError(c, importErr)
	}

	response := fiber.Map{
		"message": fmt.Sprintf("Successfully imported %d %s", count, kind),
		"count":   count,
	}
	if batch != nil {
		response["importId"] = batch.ID
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func BulkUploadStudents(c *fiber.Ctx) error {
	return runImport(c, models.ImportKindStudents, nil, func(ctx context.Context, r io.Reader) (int, error) {
		return services.ImportStudents(ctx, database.DB, r)
	})
}

func BulkUploadTeachers(c *fiber.Ctx) error {
	return runImport(c, models.ImportKindTeachers, nil, func(ctx context.Context, r io.Reader) (int, error) {
		return services.ImportTeachers(ctx, database.DB, r)
	})
}

func BulkUploadQuestions(c *fiber.Ctx) error {
	examID, err := uuid.Parse(c.FormValue("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid examId form field is required"})
	}
	if _, err := authorizeExam(c, examID); err != nil {
		return respondError(c, err)
	}
	return runImport(c, models.ImportKindQuestions, &examID, func(ctx context.Context, r io.Reader) (int, error) {
		return services.ImportQuestions(ctx, database.DB, examID, r)
	})
}

const maxImportsPage = 500

// importsLimit clamps the limit query parameter to 1..maxImportsPage.
func importsLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", 100)
	if limit < 1 {
		return 1
	}
	if limit > maxImportsPage {
		return maxImportsPage
	}
	return limit
}

func ListImports(c *fiber.Ctx) error {
	query := database.DB.Order("created_at desc").Limit(importsLimit(c))
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var batches []models.ImportBatch
	if err := query.Find(&batches).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(batches)
}
