package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/dbx"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

var (
	runInTx = dbx.WithTx

	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// BackupDocument is the portable JSON shape written by /export and accepted
// by /import.
type BackupDocument struct {
	UserID     int64        `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Packs      []BackupPack `json:"packs"`
}

type BackupPack struct {
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	Kind       models.PackKind `json:"kind"`
	IsPaidPack bool            `json:"is_paid_pack"`
	Link       string          `json:"link"`
	Items      []BackupItem    `json:"items"`
}

type BackupItem struct {
	FileID string `json:"file_id"`
	Emoji  string `json:"emoji,omitempty"`
}

type BackupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	logger      logging.Logger
}

func NewBackupService(db *sql.DB, repomanager repomanager.RepositoryManager, config *config.Config,
	logger logging.Logger) *BackupService {
	return &BackupService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		logger:      logger.With("module", "backup"),
	}
}

// Export writes the user's packs and items to a JSON file in the backup
// directory and uploads the same document to the configured bucket. The
// upload is best-effort: a missing or unreachable bucket leaves the local
// file as the result.
func (s *BackupService) Export(ctx context.Context, userID int64) (string, error) {
	doc, err := s.document(ctx, userID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.config.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}

	path := filepath.Join(s.config.BackupDir, fmt.Sprintf("packs_%d_%s.json", userID, uuid.NewString()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("backup write: %w", err)
	}

	if s.config.S3Bucket != "" {
		if err := s.upload(ctx, userID, data); err != nil {
			s.logger.Warn(ctx, "backup upload failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info(ctx, "backup exported", "user_id", userID, "packs", len(doc.Packs), "path", path)
	return path, nil
}

func (s *BackupService) document(ctx context.Context, userID int64) (*BackupDocument, error) {
	packs, err := s.repomanager.Packs(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repomanager.Items(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byPack := make(map[int64][]BackupItem)
	for _, item := range items {
		byPack[item.PackID] = append(byPack[item.PackID], BackupItem{
			FileID: item.FileID,
			Emoji:  item.Emoji,
		})
	}

	doc := &BackupDocument{UserID: userID, ExportedAt: time.Now().UTC()}
	for _, pack := range packs {
		doc.Packs = append(doc.Packs, BackupPack{
			Name:       pack.Name,
			Title:      pack.Title,
			Kind:       pack.Kind,
			IsPaidPack: pack.IsPaidPack,
			Link:       pack.Link,
			Items:      byPack[pack.ID],
		})
	}
	return doc, nil
}

func (s *BackupService) upload(ctx context.Context, userID int64, data []byte) error {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	d := time.Now()
	key := fmt.Sprintf("backups/%d/%d/%d/%d/%s.json", userID, d.Year(), d.Month(), d.Day(), uuid.NewString())

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Import ingests a previously exported document inside one transaction.
// Only rows owned by the caller are written regardless of what the document
// claims, and existing slugs are left untouched.
func (s *BackupService) Import(ctx context.Context, userID int64, data []byte) (int, int, error) {
	var doc BackupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, 0, fmt.Errorf("%w: not a valid backup document", common.ErrorValidation)
	}

	packsAdded, itemsAdded := 0, 0
	err := runInTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		packsRepo := s.repomanager.Packs(tx)
		itemsRepo := s.repomanager.Items(tx)

		for _, bp := range doc.Packs {
			if _, ok := models.ParsePackKind(string(bp.Kind)); !ok {
				continue
			}

			pack := &models.Pack{
				UserID:     userID,
				Name:       bp.Name,
				Title:      bp.Title,
				Kind:       bp.Kind,
				IsPaidPack: bp.IsPaidPack,
				Link:       bp.Link,
			}
			if err := packsRepo.CreateIgnoreConflict(ctx, pack); err != nil {
				return err
			}

			stored, err := packsRepo.GetByName(ctx, bp.Name)
			if err != nil {
				return err
			}
			if stored.UserID != userID {
				// slug belongs to someone else; skip its items too
				continue
			}
			packsAdded++

			for _, bi := range bp.Items {
				if bi.FileID == "" {
					continue
				}
				exists, err := itemsRepo.ExistsByPackAndFile(ctx, stored.ID, bi.FileID)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				err = itemsRepo.Create(ctx, &models.Item{
					PackID: stored.ID,
					FileID: bi.FileID,
					Emoji:  bi.Emoji,
					Kind:   bp.Kind,
				})
				if err != nil {
					return err
				}
				itemsAdded++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Info(ctx, "backup imported", "user_id", userID, "packs", packsAdded, "items", itemsAdded)
	return packsAdded, itemsAdded, nil
}
