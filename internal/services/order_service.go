package services

import (
	"database/sql"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"reprography-backend/internal/models"
	"reprography-backend/internal/pricing"
)

// FileStore is the blob-storage facade the submission workflow uploads to.
type FileStore interface {
	Upload(path string, data []byte, contentType string) error
	Remove(path string) error
	PublicURL(path string) string
}

// OrderStore is the persistence facade over the orders table.
type OrderStore interface {
	CreateOrder(order *models.Order) (*models.Order, error)
	ListUserOrders(userID string) ([]models.Order, error)
	ListGuestOrders(guestSessionID string) ([]models.Order, error)
	ListAllOrders() ([]models.Order, error)
	UpdateOrderStatus(orderID uuid.UUID, status string) (*models.Order, error)
}

// CompletionNotifier delivers the best-effort "order ready" push. It never
// returns an error; delivery problems are its own concern.
type CompletionNotifier interface {
	OrderCompleted(userID, fileName string)
}

// Owner identifies who a submission or listing belongs to. Exactly one
// field is set: UserID for an authenticated caller, GuestSessionID for a
// guest carrying a session cookie.
type Owner struct {
	UserID         string
	GuestSessionID string
}

func (o Owner) IsGuest() bool {
	return o.UserID == ""
}

// FileUpload is one file from a multipart submission.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// SubmitResult reports a settled batch: the orders that were created and a
// per-file error for each upload that was not.
type SubmitResult struct {
	Orders []models.Order
	Errors []models.FileErrorInfo
}

// OrderService composes pricing, the file store and the order store into
// the submission and fulfillment workflows.
type OrderService struct {
	files    FileStore
	orders   OrderStore
	notifier CompletionNotifier
	logger   *zap.Logger
}

func NewOrderService(files FileStore, orders OrderStore, notifier CompletionNotifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		files:    files,
		orders:   orders,
		notifier: notifier,
		logger:   logger,
	}
}

// SubmitBatch turns each uploaded file into one order. Files are processed
// concurrently and independently: a failed file never rolls back or blocks
// its siblings, and the batch settles before returning. The returned error
// is only non-nil for invalid options, which reject the whole batch before
// any side effect.
func (s *OrderService) SubmitBatch(owner Owner, uploads []FileUpload, opts models.OrderOptions) (SubmitResult, error) {
	totalCost, err := pricing.Cost(opts.Quantity, opts.PaperSize, opts.ColorMode)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("invalid order options: %w", err)
	}

	type outcome struct {
		order   *models.Order
		fileErr *models.FileErrorInfo
	}

	outcomes := make([]outcome, len(uploads))

	var wg sync.WaitGroup
	for i, upload := range uploads {
		wg.Add(1)
		go func(i int, upload FileUpload) {
			defer wg.Done()
			order, fileErr := s.submitOne(owner, upload, opts, totalCost)
			outcomes[i] = outcome{order: order, fileErr: fileErr}
		}(i, upload)
	}
	wg.Wait()

	var result SubmitResult
	for _, o := range outcomes {
		if o.order != nil {
			result.Orders = append(result.Orders, *o.order)
		}
		if o.fileErr != nil {
			result.Errors = append(result.Errors, *o.fileErr)
		}
	}
	return result, nil
}

func (s *OrderService) submitOne(owner Owner, upload FileUpload, opts models.OrderOptions, totalCost float64) (*models.Order, *models.FileErrorInfo) {
	fileName := upload.Name
	if fileName == "" {
		fileName = "document"
	}

	path := storagePath(owner, upload.Name, upload.ContentType)

	if err := s.files.Upload(path, upload.Data, upload.ContentType); err != nil {
		s.logger.Warn("file upload failed",
			zap.String("file_name", fileName), zap.Error(err))
		return nil, &models.FileErrorInfo{
			Filename: fileName,
			Error:    fmt.Sprintf("failed to upload file: %v", err),
			Stage:    "upload",
		}
	}

	order := &models.Order{
		ID:        uuid.New(),
		FileName:  fileName,
		FilePath:  path,
		Quantity:  opts.Quantity,
		PaperSize: opts.PaperSize,
		ColorMode: opts.ColorMode,
		TotalCost: totalCost,
		Status:    models.StatusPending,
	}
	if owner.IsGuest() {
		order.GuestSessionID = sql.NullString{String: owner.GuestSessionID, Valid: true}
	} else {
		order.UserID = sql.NullString{String: owner.UserID, Valid: true}
	}

	created, err := s.orders.CreateOrder(order)
	if err != nil {
		// Compensate: the blob is orphaned without a row, so try to
		// remove it. Its own failure is logged, not escalated.
		if removeErr := s.files.Remove(path); removeErr != nil {
			s.logger.Warn("failed to remove orphaned file after insert failure",
				zap.String("file_path", path), zap.Error(removeErr))
		}
		s.logger.Warn("order insert failed",
			zap.String("file_name", fileName), zap.Error(err))
		return nil, &models.FileErrorInfo{
			Filename: fileName,
			Error:    fmt.Sprintf("failed to save order: %v", err),
			Stage:    "database",
		}
	}

	return created, nil
}

// ListForOwner returns the caller's orders, newest first. The two query
// shapes are mutually exclusive: authenticated callers never see guest
// rows and vice versa. A guest without a session token has no orders.
func (s *OrderService) ListForOwner(owner Owner) ([]models.Order, error) {
	if !owner.IsGuest() {
		return s.orders.ListUserOrders(owner.UserID)
	}
	if owner.GuestSessionID == "" {
		return nil, nil
	}
	return s.orders.ListGuestOrders(owner.GuestSessionID)
}

// ListAll returns every order for the staff dashboard.
func (s *OrderService) ListAll() ([]models.Order, error) {
	return s.orders.ListAllOrders()
}

// FileURL returns the public download URL for an order's stored file.
func (s *OrderService) FileURL(path string) string {
	return s.files.PublicURL(path)
}

// UpdateStatus commits the status change. When the new status is the
// terminal "completed" and the order belongs to an authenticated user, it
// then attempts the best-effort completion notification. The notification
// can never fail the update: the mutation is already committed.
func (s *OrderService) UpdateStatus(orderID uuid.UUID, status string) (*models.Order, error) {
	order, err := s.orders.UpdateOrderStatus(orderID, status)
	if err != nil {
		return nil, err
	}

	if status == models.StatusCompleted && order.UserID.Valid && s.notifier != nil {
		s.notifier.OrderCompleted(order.UserID.String, order.FileName)
	}

	return order, nil
}

// storagePath derives a collision-free object key for one upload:
// {owner-or-"guest"}/{uuid}.{ext}. The extension comes from the original
// name when present, else from the declared media type, else "bin".
func storagePath(owner Owner, fileName, contentType string) string {
	prefix := owner.UserID
	if owner.IsGuest() {
		prefix = "guest"
	}
	return fmt.Sprintf("%s/%s.%s", prefix, uuid.New().String(), fileExtension(fileName, contentType))
}

func fileExtension(fileName, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."); ext != "" {
		return ext
	}
	switch contentType {
	case "application/pdf":
		return "pdf"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "text/plain":
		return "txt"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
