package receipts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/models"
)

func sampleResult() *models.AllocationResult {
	return &models.AllocationResult{
		AllocationID:  "6f1c2d1e-8a57-4c43-9d1e-0b5b3a6c9a10",
		CommodityType: "Arabica",
		Counterparty:  "Roastery One",
		Requested:     decimal.NewFromInt(600),
		Allocations: []models.BatchAllocation{
			{BatchID: 1, BatchCode: "B1", Kilograms: decimal.NewFromInt(300)},
			{BatchID: 2, BatchCode: "B2", Kilograms: decimal.NewFromInt(300)},
		},
		AllocatedAt: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
		AllocatedBy: "bob",
	}
}

func TestRenderProducesPDF(t *testing.T) {
	body, err := Render(sampleResult())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

type recordingPutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.input = in
	r.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveUploadsUnderAllocationKey(t *testing.T) {
	putter := &recordingPutter{}
	a := newArchiver(putter, "receipts-bucket", nil)

	require.NoError(t, a.Archive(context.Background(), sampleResult()))
	require.NotNil(t, putter.input)
	assert.Equal(t, "receipts-bucket", *putter.input.Bucket)
	assert.Equal(t, "receipts/allocations/6f1c2d1e-8a57-4c43-9d1e-0b5b3a6c9a10.pdf", *putter.input.Key)
	assert.Equal(t, "application/pdf", *putter.input.ContentType)
	assert.True(t, bytes.HasPrefix(putter.body, []byte("%PDF-")))
}

func TestArchiveReportsUploadFailure(t *testing.T) {
	a := newArchiver(&recordingPutter{err: errors.New("access denied")}, "b", nil)
	err := a.Archive(context.Background(), sampleResult())
	assert.ErrorContains(t, err, "access denied")
}
