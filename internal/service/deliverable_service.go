package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"
	"github.com/melodiemoment/api/internal/storage"

	_ "image/png"
)

var allowedDeliverableTypes = map[string]struct{}{
	constants.DeliverableMP3: {},
	constants.DeliverableMP4: {},
	constants.DeliverablePDF: {},
	constants.DeliverablePNG: {},
	constants.DeliverableWAV: {},
}

// IsAllowedDeliverableType reports whether t may be uploaded.
func IsAllowedDeliverableType(t string) bool {
	_, ok := allowedDeliverableTypes[t]
	return ok
}

// DeliverableService stores produced files and their rows.
type DeliverableService struct {
	orderRepo       repository.OrderRepository
	deliverableRepo repository.DeliverableRepository
	store           storage.ObjectStore
	maxSize         int64
	metrics         *metrics.ShopMetrics
	now             func() time.Time
}

// NewDeliverableService creates the deliverable service. maxSize <= 0
// disables the size check.
func NewDeliverableService(
	orderRepo repository.OrderRepository,
	deliverableRepo repository.DeliverableRepository,
	store storage.ObjectStore,
	maxSize int64,
	m *metrics.ShopMetrics,
) *DeliverableService {
	return &DeliverableService{
		orderRepo:       orderRepo,
		deliverableRepo: deliverableRepo,
		store:           store,
		maxSize:         maxSize,
		metrics:         m,
		now:             time.Now,
	}
}

// Upload stores an admin upload for orderID.
func (s *DeliverableService) Upload(ctx context.Context, orderID, deliverableType string, file *multipart.FileHeader) (*models.Deliverable, error) {
	deliverableType = strings.ToLower(strings.TrimSpace(deliverableType))
	if !IsAllowedDeliverableType(deliverableType) {
		return nil, fmt.Errorf("%w: %q", ErrDeliverableType, deliverableType)
	}
	if file == nil {
		return nil, ErrInvalidInput
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, fmt.Errorf("%w: max %d MB", ErrFileTooLarge, s.maxSize/1024/1024)
	}
	order, err := s.loadOrder(orderID)
	if err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
	}
	defer src.Close()
	if deliverableType == constants.DeliverablePNG {
		if _, _, err := image.DecodeConfig(src); err != nil {
			return nil, fmt.Errorf("%w: png konnte nicht gelesen werden", ErrInvalidInput)
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
		}
	}
	return s.attach(ctx, order, deliverableType, file.Filename, src)
}

// AttachBytes stores generated content as a deliverable of order.
func (s *DeliverableService) AttachBytes(ctx context.Context, order *models.Order, deliverableType, fileName string, data []byte) (*models.Deliverable, error) {
	return s.attach(ctx, order, deliverableType, fileName, bytes.NewReader(data))
}

func (s *DeliverableService) attach(ctx context.Context, order *models.Order, deliverableType, fileName string, body io.Reader) (*models.Deliverable, error) {
	key := BuildDeliverableKey(order.OrderNumber, deliverableType, fileName, s.now())
	url, err := s.store.Put(ctx, key, body, storage.ContentTypeFor(deliverableType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
	}
	name := strings.TrimSpace(filepath.Base(fileName))
	if name == "" || name == "." {
		name = filepath.Base(key)
	}
	deliverable := &models.Deliverable{
		OrderID:    order.ID,
		Type:       deliverableType,
		FileURL:    url,
		FileName:   name,
		StorageKey: key,
	}
	if err := s.deliverableRepo.Create(deliverable); err != nil {
		runBestEffort(ctx, s.metrics, "storage_cleanup", func(ctx context.Context) error {
			return s.store.Remove(ctx, key)
		})
		return nil, fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
	}
	logger.FromContext(ctx).Infow("deliverable_stored",
		"order_number", order.OrderNumber,
		"type", deliverableType,
		"key", key,
		"store", s.store.Name(),
	)
	return deliverable, nil
}

// Delete removes the stored object and the row. A storage failure does not
// keep the row alive.
func (s *DeliverableService) Delete(ctx context.Context, id string) error {
	deliverable, err := s.deliverableRepo.GetByID(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if deliverable == nil {
		return ErrDeliverableNotFound
	}
	if deliverable.StorageKey != "" {
		runBestEffort(ctx, s.metrics, "storage_remove", func(ctx context.Context) error {
			return s.store.Remove(ctx, deliverable.StorageKey)
		})
	}
	if err := s.deliverableRepo.Delete(deliverable.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	logger.FromContext(ctx).Infow("deliverable_deleted", "deliverable_id", deliverable.ID, "order_id", deliverable.OrderID)
	return nil
}

// ListByOrderNumber lists the files of one order.
func (s *DeliverableService) ListByOrderNumber(orderNumber string) ([]models.Deliverable, error) {
	order, err := s.orderRepo.GetByOrderNumber(strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.deliverableRepo.ListByOrder(order.ID)
}

func (s *DeliverableService) loadOrder(orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(strings.TrimSpace(orderID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// BuildDeliverableKey returns <orderNumber>/<type>_<unixms>.<ext>. The
// extension comes from fileName and falls back to the type.
func BuildDeliverableKey(orderNumber, deliverableType, fileName string, at time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))), ".")
	if ext == "" || strings.ContainsAny(ext, "/\\ ") {
		ext = deliverableType
	}
	return fmt.Sprintf("%s/%s_%d.%s", orderNumber, deliverableType, at.UnixMilli(), ext)
}
