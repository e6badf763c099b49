package mocks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
)

// MockOfferRepository implements repository.OfferRepository for testing
type MockOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]*models.Offer
	// Err если задана, возвращается из всех методов
	Err error
	// Reads количество обращений к GetByID
	Reads int
}

func NewMockOfferRepository() *MockOfferRepository {
	return &MockOfferRepository{
		offers: make(map[string]*models.Offer),
	}
}

// Put кладёт оффер напрямую, минуя валидацию
func (m *MockOfferRepository) Put(offer *models.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *offer
	m.offers[offer.ID] = &copied
}

func (m *MockOfferRepository) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.offers[id]
	return ok
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	if m.Err != nil {
		return m.Err
	}
	offer.UpdatedAt = offer.CreatedAt
	m.Put(offer)
	return nil
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++

	if m.Err != nil {
		return nil, m.Err
	}
	offer, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (m *MockOfferRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Offer, error) {
	offer, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != ownerID {
		return nil, repository.ErrOfferNotFound
	}
	return offer, nil
}

func (m *MockOfferRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := []models.Offer{}
	for _, offer := range m.offers {
		if offer.OwnerID == ownerID {
			result = append(result, *offer)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockOfferRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := []models.Offer{}
	for _, offer := range m.offers {
		result = append(result, *offer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, limit, offset), nil
}

func (m *MockOfferRepository) Update(ctx context.Context, offer *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.offers[offer.ID]
	if !ok || existing.OwnerID != offer.OwnerID {
		return repository.ErrOfferNotFound
	}
	offer.CreatedAt = existing.CreatedAt
	// updated_at строго растёт, как версия кэша
	offer.UpdatedAt = time.Now().UTC()
	if !offer.UpdatedAt.After(existing.UpdatedAt.Add(time.Microsecond)) {
		offer.UpdatedAt = existing.UpdatedAt.Add(2 * time.Microsecond)
	}
	copied := *offer
	m.offers[offer.ID] = &copied
	return nil
}

func (m *MockOfferRepository) Delete(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.offers[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrOfferNotFound
	}
	delete(m.offers, id)
	return nil
}

// MockPropertyRepository implements repository.PropertyRepository for testing
type MockPropertyRepository struct {
	mu         sync.RWMutex
	properties map[string]*models.Property
}

func NewMockPropertyRepository() *MockPropertyRepository {
	return &MockPropertyRepository{
		properties: make(map[string]*models.Property),
	}
}

func (m *MockPropertyRepository) Put(property *models.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *property
	m.properties[property.ID] = &copied
}

func (m *MockPropertyRepository) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.properties[id]
	return ok
}

func (m *MockPropertyRepository) Create(ctx context.Context, property *models.Property) error {
	property.UpdatedAt = property.CreatedAt
	m.Put(property)
	return nil
}

func (m *MockPropertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	property, ok := m.properties[id]
	if !ok {
		return nil, repository.ErrPropertyNotFound
	}
	copied := *property
	return &copied, nil
}

func (m *MockPropertyRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Property, error) {
	property, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != ownerID {
		return nil, repository.ErrPropertyNotFound
	}
	return property, nil
}

func (m *MockPropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.Property{}
	for _, property := range m.properties {
		if property.OwnerID == ownerID {
			result = append(result, *property)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockPropertyRepository) Update(ctx context.Context, property *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.properties[property.ID]
	if !ok || existing.OwnerID != property.OwnerID {
		return repository.ErrPropertyNotFound
	}
	property.CreatedAt = existing.CreatedAt
	property.UpdatedAt = time.Now().UTC()
	copied := *property
	m.properties[property.ID] = &copied
	return nil
}

func (m *MockPropertyRepository) Delete(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.properties[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrPropertyNotFound
	}
	delete(m.properties, id)
	return nil
}

// MockVisitRepository implements repository.VisitRepository for testing.
// Проверяет ссылку на оффер как внешний ключ visitors.offer_id.
type MockVisitRepository struct {
	mu     sync.RWMutex
	offers *MockOfferRepository
	visits []models.Visit
	Err    error
}

func NewMockVisitRepository(offers *MockOfferRepository) *MockVisitRepository {
	return &MockVisitRepository{offers: offers}
}

func (m *MockVisitRepository) Insert(ctx context.Context, visit *models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if !m.offers.Has(visit.OfferID) {
		return repository.ErrOfferNotFound
	}
	m.visits = append(m.visits, *visit)
	return nil
}

// Visits копия всех записанных визитов
func (m *MockVisitRepository) Visits() []models.Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Visit(nil), m.visits...)
}

func (m *MockVisitRepository) GetStats(ctx context.Context, offerID string) (*models.OfferStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.OfferStats{OfferID: offerID}
	uids := make(map[string]struct{})
	for _, v := range m.visits {
		if v.OfferID != offerID {
			continue
		}
		stats.TotalVisits++
		if v.UID != models.UnknownReferrer {
			uids[v.UID] = struct{}{}
		}
	}
	stats.UniqueVisits = int64(len(uids))
	return stats, nil
}

func (m *MockVisitRepository) GetDailyStats(ctx context.Context, offerID string, days int) ([]models.DailyVisitStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	since := time.Now().UTC().AddDate(0, 0, -days)
	counts := make(map[string]int64)
	for _, v := range m.visits {
		if v.OfferID == offerID && v.CreatedAt.After(since) {
			counts[v.CreatedAt.Format("2006-01-02")]++
		}
	}

	result := []models.DailyVisitStats{}
	for date, n := range counts {
		result = append(result, models.DailyVisitStats{Date: date, Visits: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result, nil
}

func (m *MockVisitRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.VisitWithOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.VisitWithOffer{}
	for i := len(m.visits) - 1; i >= 0; i-- {
		v := m.visits[i]
		offer, err := m.offers.GetByID(ctx, v.OfferID)
		if err != nil || offer.OwnerID != ownerID {
			continue
		}
		result = append(result, models.VisitWithOffer{Visit: v, OfferTitle: offer.Title})
	}
	return paginate(result, limit, offset), nil
}

// ErrMockStoreDown имитация недоступного хранилища
var ErrMockStoreDown = errors.New("mock store is down")

// MockConversionRepository implements repository.ConversionRepository for testing.
// Уникальность кортежа и внешние ключи проверяются под одной блокировкой,
// как это делает уникальный индекс в PostgreSQL.
type MockConversionRepository struct {
	mu          sync.Mutex
	offers      *MockOfferRepository
	properties  *MockPropertyRepository
	conversions []models.Conversion
	tuples      map[conversionKey]struct{}
	Err         error
}

type conversionKey struct {
	propertyID string
	offerID    string
	userID     string
	level      int
}

func NewMockConversionRepository(offers *MockOfferRepository, properties *MockPropertyRepository) *MockConversionRepository {
	return &MockConversionRepository{
		offers:     offers,
		properties: properties,
		tuples:     make(map[conversionKey]struct{}),
	}
}

func (m *MockConversionRepository) Insert(ctx context.Context, conversion *models.Conversion) (models.InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.OutcomeFailed, m.Err
	}

	key := conversionKey{conversion.PropertyID, conversion.OfferID, conversion.UserID, conversion.Level}
	if _, exists := m.tuples[key]; exists {
		return models.OutcomeConflict, nil
	}
	if !m.properties.Has(conversion.PropertyID) || !m.offers.Has(conversion.OfferID) {
		return models.OutcomeForeignKeyViolation, errors.New("violates foreign key constraint")
	}

	m.tuples[key] = struct{}{}
	m.conversions = append(m.conversions, *conversion)
	return models.OutcomeInserted, nil
}

// Conversions копия всех записанных конверсий
func (m *MockConversionRepository) Conversions() []models.Conversion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Conversion(nil), m.conversions...)
}

func (m *MockConversionRepository) owned(ctx context.Context, ownerID string) []models.ConversionWithRelations {
	result := []models.ConversionWithRelations{}
	for i := len(m.conversions) - 1; i >= 0; i-- {
		c := m.conversions[i]
		property, err := m.properties.GetByID(ctx, c.PropertyID)
		if err != nil || property.OwnerID != ownerID {
			continue
		}
		row := models.ConversionWithRelations{Conversion: c, PropertyName: &property.Name}
		if offer, err := m.offers.GetByID(ctx, c.OfferID); err == nil {
			title := offer.Title
			row.OfferName = &title
		}
		result = append(result, row)
	}
	return result
}

func (m *MockConversionRepository) List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionWithRelations, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, 0, m.Err
	}

	matched := []models.ConversionWithRelations{}
	for _, row := range m.owned(ctx, filter.OwnerID) {
		if !containsFold(row.PropertyName, filter.PropertyFilter) || !containsFold(row.OfferName, filter.OfferFilter) {
			continue
		}
		matched = append(matched, row)
	}
	return paginate(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func (m *MockConversionRepository) GetStats(ctx context.Context, ownerID string) (*models.ConversionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &models.ConversionStats{}
	offers := make(map[string]struct{})
	for _, row := range m.owned(ctx, ownerID) {
		stats.Total++
		switch row.Status {
		case models.ConversionCompleted:
			stats.Completed++
		case models.ConversionPending:
			stats.Pending++
		}
		offers[row.OfferID] = struct{}{}
	}
	stats.UniqueOffers = int64(len(offers))
	return stats, nil
}

// MockOfferCache implements repository.OfferCache for testing.
// Версии сравниваются так же, как в Redis-скрипте.
type MockOfferCache struct {
	mu       sync.RWMutex
	offers   map[string]models.Offer
	versions map[string]int64
	Err      error
}

func NewMockOfferCache() *MockOfferCache {
	return &MockOfferCache{
		offers:   make(map[string]models.Offer),
		versions: make(map[string]int64),
	}
}

func (m *MockOfferCache) Get(ctx context.Context, offerID string) (*models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	offer, ok := m.offers[offerID]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return &offer, nil
}

func (m *MockOfferCache) Set(ctx context.Context, offer *models.Offer, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if !m.accept(offer.ID, offer.UpdatedAt) {
		return nil
	}
	m.offers[offer.ID] = *offer
	return nil
}

func (m *MockOfferCache) Invalidate(ctx context.Context, offerID string, version time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.accept(offerID, version) {
		delete(m.offers, offerID)
	}
	return nil
}

func (m *MockOfferCache) accept(offerID string, version time.Time) bool {
	v := version.UnixMicro()
	if cur, ok := m.versions[offerID]; ok && cur > v {
		return false
	}
	m.versions[offerID] = v
	return true
}

// Has есть ли в кэше сам оффер, а не только отметка об инвалидации
func (m *MockOfferCache) Has(offerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.offers[offerID]
	return ok
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(value *string, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	if value == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*value), strings.ToLower(filter))
}
