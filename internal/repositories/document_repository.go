package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

// Collection names in the document store.
const (
	CollectionFinanceTransactions = "finance_transactions"
	CollectionDailyTasks          = "daily_tasks"
	CollectionApprovalAudit       = "approval_audit"
	CollectionEmployees           = "employees"
)

// DocumentRepository writes auxiliary records to mongo. Every write is an
// upsert keyed by a deterministic _id, so replays never duplicate.
type DocumentRepository struct {
	DB      *mongo.Database
	Retries int
}

func NewDocumentRepository(database *mongo.Database, retries int) *DocumentRepository {
	return &DocumentRepository{DB: database, Retries: retries}
}

// insertOnce creates the document if its _id is new and leaves an existing one untouched.
func (r *DocumentRepository) insertOnce(ctx context.Context, collection string, id any, doc any) error {
	fields, err := withoutID(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", collection, err)
	}

	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		_, err := r.DB.Collection(collection).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$setOnInsert": fields},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to write %s document: %w", collection, err)
		}
		return nil
	})
}

// withoutID encodes doc and drops _id, which the upsert filter already supplies.
func withoutID(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_id")
	return fields, nil
}

func (r *DocumentRepository) UpsertFinanceTransaction(ctx context.Context, doc *models.FinanceTransaction) error {
	return r.insertOnce(ctx, CollectionFinanceTransactions, doc.ID, doc)
}

func (r *DocumentRepository) UpsertDailyTask(ctx context.Context, doc *models.DailyTask) error {
	return r.insertOnce(ctx, CollectionDailyTasks, doc.ID, doc)
}

func (r *DocumentRepository) InsertApprovalAudit(ctx context.Context, doc *models.ApprovalAudit) error {
	return r.insertOnce(ctx, CollectionApprovalAudit, doc.ID, doc)
}

// UpsertEmployeeMirror replaces the mirror with the latest relational state.
func (r *DocumentRepository) UpsertEmployeeMirror(ctx context.Context, doc *models.EmployeeMirror) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		_, err := r.DB.Collection(CollectionEmployees).ReplaceOne(ctx,
			bson.M{"_id": doc.EmployeeID},
			doc,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to mirror employee %d: %w", doc.EmployeeID, err)
		}
		return nil
	})
}

// Ping checks the document store for health probes.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.DB.Client().Ping(ctx, nil)
}
