package analyzer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kolektra/callqa/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

type mockBatchResultIterator struct {
	items []anthropic.BatchResultItem
	idx   int
}

func newMockBatchIterator(items []anthropic.BatchResultItem) *mockBatchResultIterator {
	return &mockBatchResultIterator{items: items, idx: -1}
}

func (m *mockBatchResultIterator) Next() bool {
	m.idx++
	return m.idx < len(m.items)
}

func (m *mockBatchResultIterator) Item() anthropic.BatchResultItem {
	return m.items[m.idx]
}

func (m *mockBatchResultIterator) Err() error {
	return nil
}

func (m *mockBatchResultIterator) Close() error {
	return nil
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client              = (*mockAnthropicClient)(nil)
	_ anthropic.BatchResultIterator = (*mockBatchResultIterator)(nil)
)
