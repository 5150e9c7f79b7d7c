package stock

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

// SnapshotStore is the object storage the report snapshots are written to
type SnapshotStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// ErrSnapshotStoreDisabled is returned when no object storage is configured
var ErrSnapshotStoreDisabled = shared.NewDomainError("SNAPSHOT_STORE_DISABLED", "Snapshot export is not configured")

const snapshotPageSize = 500

// ReportService serves read-only stock reports
type ReportService struct {
	items     stock.ItemRepository
	movements stock.MovementRepository
	store     SnapshotStore
	logger    *zap.Logger
	keyPrefix string
	now       func() time.Time
}

// NewReportService creates a ReportService. store may be nil.
func NewReportService(
	items stock.ItemRepository,
	movements stock.MovementRepository,
	store SnapshotStore,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		items:     items,
		movements: movements,
		store:     store,
		logger:    logger,
		keyPrefix: "stock-snapshots/",
		now:       time.Now,
	}
}

// Summary returns in-stock, out-of-stock and low-stock counts and totals
func (s *ReportService) Summary(ctx context.Context) (*stock.Summary, error) {
	return s.items.Summarize(ctx)
}

// LowStockItems pages through tracked items at or under their alert level
func (s *ReportService) LowStockItems(ctx context.Context, filter ListFilter) (shared.Paginated[ItemResponse], error) {
	f := toFilter(filter.Page, filter.PageSize)
	items, total, err := s.items.FindLowStock(ctx, f)
	if err != nil {
		return shared.Paginated[ItemResponse]{}, err
	}
	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i])
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// History returns the audit log of one item, newest first
func (s *ReportService) History(ctx context.Context, itemID uuid.UUID, filter HistoryFilter) (shared.Paginated[MovementResponse], error) {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return shared.Paginated[MovementResponse]{}, err
	}

	mf := stock.MovementFilter{
		Filter: toFilter(filter.Page, filter.PageSize),
		From:   filter.From,
		To:     filter.To,
	}
	for _, k := range filter.Kinds {
		mf.Kinds = append(mf.Kinds, stock.MovementKind(k))
	}

	movements, total, err := s.movements.FindByItem(ctx, itemID, mf)
	if err != nil {
		return shared.Paginated[MovementResponse]{}, err
	}
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return shared.NewPaginated(out, total, mf.Page, mf.PageSize), nil
}

// SnapshotResponse describes an exported snapshot
type SnapshotResponse struct {
	StorageKey  string    `json:"storage_key"`
	Items       int       `json:"items"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	GeneratedAt time.Time `json:"generated_at"`
}

var snapshotHeader = []string{
	"id", "sku", "name", "stock", "reserved_stock", "available", "track_inventory",
	"is_in_stock", "low_stock_alert", "is_perishable", "expiration_date", "unit_price", "swept_at",
}

// ExportSnapshot writes every item as CSV to object storage
func (s *ReportService) ExportSnapshot(ctx context.Context) (*SnapshotResponse, error) {
	if s.store == nil {
		return nil, ErrSnapshotStoreDisabled
	}

	generatedAt := s.now().UTC()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(snapshotHeader); err != nil {
		return nil, err
	}

	count := 0
	filter := shared.DefaultFilter()
	filter.PageSize = snapshotPageSize
	for {
		items, _, err := s.items.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if err := w.Write(snapshotRow(&items[i])); err != nil {
				return nil, err
			}
			count++
		}
		if len(items) < filter.PageSize {
			break
		}
		filter.Page++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%s.csv", s.keyPrefix, generatedAt.Format("20060102T150405Z"))
	if err := s.store.Upload(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		return nil, fmt.Errorf("upload stock snapshot: %w", err)
	}
	url, expiresAt, err := s.store.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		return nil, fmt.Errorf("presign stock snapshot: %w", err)
	}

	s.logger.Info("stock snapshot exported",
		zap.String("storage_key", key),
		zap.Int("items", count),
	)
	return &SnapshotResponse{
		StorageKey:  key,
		Items:       count,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
		GeneratedAt: generatedAt,
	}, nil
}

func snapshotRow(i *stock.SellableItem) []string {
	avail := i.Availability()
	available := strconv.FormatInt(avail.Quantity, 10)
	if avail.Unbounded {
		available = "unbounded"
	}
	return []string{
		i.ID.String(),
		i.SKU,
		i.Name,
		strconv.FormatInt(i.Stock, 10),
		strconv.FormatInt(i.ReservedStock, 10),
		available,
		strconv.FormatBool(i.TrackInventory),
		strconv.FormatBool(i.IsInStock),
		strconv.FormatInt(i.LowStockAlert, 10),
		strconv.FormatBool(i.IsPerishable),
		formatOptionalTime(i.ExpirationDate),
		i.UnitPrice.StringFixed(2),
		formatOptionalTime(i.SweptAt),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
