package services_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"reprography-backend/internal/models"
	"reprography-backend/internal/services"
)

type fakeFileStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	removed   []string
	failFor   string // substring of path or name triggering upload failure
	removeErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{uploads: make(map[string][]byte)}
}

func (f *fakeFileStore) Upload(path string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && strings.Contains(path, f.failFor) {
		return errors.New("storage unavailable")
	}
	f.uploads[path] = data
	return nil
}

func (f *fakeFileStore) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.uploads, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeFileStore) PublicURL(path string) string {
	return "https://storage.example.com/" + path
}

func (f *fakeFileStore) storedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.uploads))
	for p := range f.uploads {
		paths = append(paths, p)
	}
	return paths
}

type fakeOrderStore struct {
	mu            sync.Mutex
	orders        []models.Order
	failForName   string // file name triggering insert failure
	updateErr     error
	updatedStatus string
}

func (f *fakeOrderStore) CreateOrder(order *models.Order) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failForName != "" && order.FileName == f.failForName {
		return nil, errors.New("insert failed")
	}
	f.orders = append(f.orders, *order)
	created := *order
	return &created, nil
}

func (f *fakeOrderStore) ListUserOrders(userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID.Valid && o.UserID.String == userID && !o.GuestSessionID.Valid {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListGuestOrders(guestSessionID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if !o.UserID.Valid && o.GuestSessionID.Valid && o.GuestSessionID.String == guestSessionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListAllOrders() ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeOrderStore) UpdateOrderStatus(orderID uuid.UUID, status string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updatedStatus = status
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			f.orders[i].Status = status
			order := f.orders[i]
			return &order, nil
		}
	}
	return nil, errors.New("order not found")
}

type fakeNotifier struct {
	mu        sync.Mutex
	calls     int
	userIDs   []string
	fileNames []string
}

func (f *fakeNotifier) OrderCompleted(userID, fileName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.userIDs = append(f.userIDs, userID)
	f.fileNames = append(f.fileNames, fileName)
}

func defaultOptions() models.OrderOptions {
	return models.OrderOptions{Quantity: 2, PaperSize: "A4", ColorMode: "color"}
}

func makeUploads(names ...string) []services.FileUpload {
	uploads := make([]services.FileUpload, len(names))
	for i, name := range names {
		uploads[i] = services.FileUpload{
			Name:        name,
			ContentType: "application/pdf",
			Data:        []byte("payload-" + name),
		}
	}
	return uploads
}

func TestSubmitBatch_AuthenticatedThreeFiles(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	result, err := svc.SubmitBatch(
		services.Owner{UserID: "user-1"},
		makeUploads("a.pdf", "b.pdf", "c.pdf"),
		defaultOptions(),
	)
	require.NoError(t, err)

	assert.Len(t, result.Orders, 3)
	assert.Empty(t, result.Errors)

	paths := make(map[string]bool)
	for _, order := range result.Orders {
		assert.True(t, order.UserID.Valid)
		assert.Equal(t, "user-1", order.UserID.String)
		assert.False(t, order.GuestSessionID.Valid)
		assert.Equal(t, models.StatusPending, order.Status)
		assert.InDelta(t, 0.70, order.TotalCost, 1e-9) // (0.10+0.25)*2
		assert.True(t, strings.HasPrefix(order.FilePath, "user-1/"))
		assert.True(t, strings.HasSuffix(order.FilePath, ".pdf"))
		paths[order.FilePath] = true
	}
	assert.Len(t, paths, 3, "storage paths must be distinct")
	assert.Len(t, files.storedPaths(), 3)
}

func TestSubmitBatch_GuestOwner(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	result, err := svc.SubmitBatch(
		services.Owner{GuestSessionID: "guest-token-1"},
		makeUploads("notes.pdf"),
		defaultOptions(),
	)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	order := result.Orders[0]
	assert.False(t, order.UserID.Valid)
	assert.True(t, order.GuestSessionID.Valid)
	assert.Equal(t, "guest-token-1", order.GuestSessionID.String)
	assert.True(t, strings.HasPrefix(order.FilePath, "guest/"))
}

func TestSubmitBatch_InvalidOptionsNoSideEffects(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	_, err := svc.SubmitBatch(
		services.Owner{UserID: "user-1"},
		makeUploads("a.pdf"),
		models.OrderOptions{Quantity: 0, PaperSize: "A4", ColorMode: "bw"},
	)
	assert.Error(t, err)
	assert.Empty(t, files.storedPaths())
	assert.Empty(t, store.orders)
}

func TestSubmitBatch_InsertFailureRemovesBlob(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{failForName: "doomed.pdf"}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	result, err := svc.SubmitBatch(
		services.Owner{UserID: "user-1"},
		makeUploads("doomed.pdf"),
		defaultOptions(),
	)
	require.NoError(t, err)

	assert.Empty(t, result.Orders)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "doomed.pdf", result.Errors[0].Filename)
	assert.Equal(t, "database", result.Errors[0].Stage)

	// Compensating delete ran: nothing left in storage.
	assert.Empty(t, files.storedPaths())
	assert.Len(t, files.removed, 1)
}

func TestSubmitBatch_PartialFailureIsolated(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{failForName: "bad.pdf"}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	result, err := svc.SubmitBatch(
		services.Owner{UserID: "user-1"},
		makeUploads("good1.pdf", "bad.pdf", "good2.pdf"),
		defaultOptions(),
	)
	require.NoError(t, err)

	assert.Len(t, result.Orders, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad.pdf", result.Errors[0].Filename)

	// Only the failed file's blob was removed.
	assert.Len(t, files.storedPaths(), 2)
}

func TestSubmitBatch_UploadFailureCreatesNoOrder(t *testing.T) {
	files := newFakeFileStore()
	files.failFor = "user-1/"
	store := &fakeOrderStore{}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	result, err := svc.SubmitBatch(
		services.Owner{UserID: "user-1"},
		makeUploads("a.pdf"),
		defaultOptions(),
	)
	require.NoError(t, err)

	assert.Empty(t, result.Orders)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "upload", result.Errors[0].Stage)
	assert.Empty(t, store.orders)
}

func TestListForOwner_PartitionIsStrict(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	svc := services.NewOrderService(files, store, &fakeNotifier{}, zap.NewNop())

	// A guest whose session token happens to equal a user id must never
	// see that user's orders.
	sharedToken := "ambiguous-id"

	_, err := svc.SubmitBatch(services.Owner{UserID: sharedToken}, makeUploads("user.pdf"), defaultOptions())
	require.NoError(t, err)
	_, err = svc.SubmitBatch(services.Owner{GuestSessionID: sharedToken}, makeUploads("guest.pdf"), defaultOptions())
	require.NoError(t, err)

	userOrders, err := svc.ListForOwner(services.Owner{UserID: sharedToken})
	require.NoError(t, err)
	require.Len(t, userOrders, 1)
	assert.Equal(t, "user.pdf", userOrders[0].FileName)

	guestOrders, err := svc.ListForOwner(services.Owner{GuestSessionID: sharedToken})
	require.NoError(t, err)
	require.Len(t, guestOrders, 1)
	assert.Equal(t, "guest.pdf", guestOrders[0].FileName)
}

func TestListForOwner_GuestWithoutTokenSeesNothing(t *testing.T) {
	svc := services.NewOrderService(newFakeFileStore(), &fakeOrderStore{}, &fakeNotifier{}, zap.NewNop())

	orders, err := svc.ListForOwner(services.Owner{})
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateStatus_CompletedNotifiesOwner(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	notifier := &fakeNotifier{}
	svc := services.NewOrderService(files, store, notifier, zap.NewNop())

	result, err := svc.SubmitBatch(services.Owner{UserID: "user-9"}, makeUploads("report.pdf"), defaultOptions())
	require.NoError(t, err)
	orderID := result.Orders[0].ID

	updated, err := svc.UpdateStatus(orderID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "user-9", notifier.userIDs[0])
	assert.Equal(t, "report.pdf", notifier.fileNames[0])
}

func TestUpdateStatus_NonTerminalDoesNotNotify(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	notifier := &fakeNotifier{}
	svc := services.NewOrderService(files, store, notifier, zap.NewNop())

	result, err := svc.SubmitBatch(services.Owner{UserID: "user-9"}, makeUploads("report.pdf"), defaultOptions())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(result.Orders[0].ID, models.StatusPrinting)
	require.NoError(t, err)
	assert.Equal(t, 0, notifier.calls)
}

func TestUpdateStatus_GuestOrderNeverNotifies(t *testing.T) {
	files := newFakeFileStore()
	store := &fakeOrderStore{}
	notifier := &fakeNotifier{}
	svc := services.NewOrderService(files, store, notifier, zap.NewNop())

	result, err := svc.SubmitBatch(services.Owner{GuestSessionID: "tok"}, makeUploads("report.pdf"), defaultOptions())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(result.Orders[0].ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 0, notifier.calls)
}

func TestUpdateStatus_StoreErrorPropagates(t *testing.T) {
	store := &fakeOrderStore{updateErr: errors.New("db down")}
	svc := services.NewOrderService(newFakeFileStore(), store, &fakeNotifier{}, zap.NewNop())

	_, err := svc.UpdateStatus(uuid.New(), models.StatusCompleted)
	assert.Error(t, err)
}
