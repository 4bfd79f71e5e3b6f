package services

import (
	"context"
	"sort"
	"time"

	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// mockOrderRepo serves staged orders from memory, applying the same window
// filter and ordering as the real repository.
type mockOrderRepo struct {
	orders []*models.Order
	err    error
}

func (m *mockOrderRepo) ListStaged(_ context.Context, since *time.Time) ([]*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Order
	for _, o := range m.orders {
		if since == nil || !o.OrderDate.Before(*since) {
			result = append(result, o)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrderKey < result[j].OrderKey
	})
	return result, nil
}

type mockLineItemRepo struct {
	lines []*models.LineItem
	err   error
}

func (m *mockLineItemRepo) ListStaged(_ context.Context, since *time.Time) ([]*models.LineItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.LineItem
	for _, l := range m.lines {
		if since == nil || !l.ShipDate.Before(*since) {
			result = append(result, l)
		}
	}
	m.sortLines(result)
	return result, nil
}

func (m *mockLineItemRepo) ListByOrderKeys(_ context.Context, orderKeys []int64) ([]*models.LineItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	wanted := make(map[int64]bool, len(orderKeys))
	for _, k := range orderKeys {
		wanted[k] = true
	}
	var result []*models.LineItem
	for _, l := range m.lines {
		if wanted[l.OrderKey] {
			result = append(result, l)
		}
	}
	m.sortLines(result)
	return result, nil
}

func (m *mockLineItemRepo) sortLines(lines []*models.LineItem) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].OrderKey != lines[j].OrderKey {
			return lines[i].OrderKey < lines[j].OrderKey
		}
		return lines[i].LineNumber < lines[j].LineNumber
	})
}

// mockOrderFactRepo stores upserted facts keyed by order key, mirroring the
// merge semantics of the real table.
type mockOrderFactRepo struct {
	facts       map[int64]*models.OrderFact
	watermark   time.Time
	watermarkOK bool
	maxErr      error
	upsertErr   error
}

func newMockOrderFactRepo() *mockOrderFactRepo {
	return &mockOrderFactRepo{facts: make(map[int64]*models.OrderFact)}
}

func (m *mockOrderFactRepo) MaxOrderDate(_ context.Context) (time.Time, bool, error) {
	if m.maxErr != nil {
		return time.Time{}, false, m.maxErr
	}
	return m.watermark, m.watermarkOK, nil
}

func (m *mockOrderFactRepo) UpsertBatch(_ context.Context, facts []*models.OrderFact) (int, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	for _, f := range facts {
		m.facts[f.OrderKey] = f
	}
	return len(facts), nil
}

func (m *mockOrderFactRepo) List(_ context.Context) ([]*models.OrderFact, error) {
	keys := make([]int64, 0, len(m.facts))
	for k := range m.facts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	result := make([]*models.OrderFact, len(keys))
	for i, k := range keys {
		result[i] = m.facts[k]
	}
	return result, nil
}

type lineFactKey struct {
	orderKey   int64
	lineNumber int32
}

type mockLineItemFactRepo struct {
	facts       map[lineFactKey]*models.LineItemFact
	watermark   time.Time
	watermarkOK bool
	maxErr      error
	upsertErr   error
}

func newMockLineItemFactRepo() *mockLineItemFactRepo {
	return &mockLineItemFactRepo{facts: make(map[lineFactKey]*models.LineItemFact)}
}

func (m *mockLineItemFactRepo) MaxShipDate(_ context.Context) (time.Time, bool, error) {
	if m.maxErr != nil {
		return time.Time{}, false, m.maxErr
	}
	return m.watermark, m.watermarkOK, nil
}

func (m *mockLineItemFactRepo) UpsertBatch(_ context.Context, facts []*models.LineItemFact) (int, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	for _, f := range facts {
		m.facts[lineFactKey{f.OrderKey, f.LineNumber}] = f
	}
	return len(facts), nil
}

func (m *mockLineItemFactRepo) List(_ context.Context) ([]*models.LineItemFact, error) {
	result := make([]*models.LineItemFact, 0, len(m.facts))
	for _, f := range m.facts {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderKey != result[j].OrderKey {
			return result[i].OrderKey < result[j].OrderKey
		}
		return result[i].LineNumber < result[j].LineNumber
	})
	return result, nil
}

// mockRelationRepo records created views.
type mockRelationRepo struct {
	views     map[string]string
	createErr map[string]error
}

func newMockRelationRepo() *mockRelationRepo {
	return &mockRelationRepo{
		views:     make(map[string]string),
		createErr: make(map[string]error),
	}
}

func (m *mockRelationRepo) CreateOrReplaceView(_ context.Context, name, body string) error {
	if err := m.createErr[name]; err != nil {
		return err
	}
	m.views[name] = body
	return nil
}

func (m *mockRelationRepo) QueryRows(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return nil, nil
}
