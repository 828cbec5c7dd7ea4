package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plotbook-crm/internal/domain/activity"
)

const (
	// ActivityCollectionName is the name of the activity log collection in MongoDB
	ActivityCollectionName = "activity_logs"
)

// ActivityRepository implements the activity.Repository interface for MongoDB
type ActivityRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository creates a new MongoDB activity repository
func NewActivityRepository(logger *slog.Logger, db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event index and the listing indexes
func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "occurred_at", Value: -1}}},
	}
	if _, err := r.db.Collection(ActivityCollectionName).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

// Create stores a new activity entry.
// Returns ErrDuplicateEntry if the event has already been recorded.
func (r *ActivityRepository) Create(ctx context.Context, entry *activity.Entry) error {
	collection := r.db.Collection(ActivityCollectionName)

	existing, err := r.GetByEventID(ctx, entry.EventID)
	if err != nil && !errors.Is(err, activity.ErrEntryNotFound{}) {
		return fmt.Errorf("failed to check for existing activity entry: %w", err)
	}
	if existing != nil {
		return activity.ErrDuplicateEntry{EventID: entry.EventID}
	}

	if entry.RecordedAt == nil {
		now := time.Now().UTC()
		entry.RecordedAt = &now
	}

	if _, err := collection.InsertOne(ctx, entry); err != nil {
		// Lost a race with a concurrent consumer
		if mongo.IsDuplicateKeyError(err) {
			return activity.ErrDuplicateEntry{EventID: entry.EventID}
		}
		r.logger.Error("Failed to create activity entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to create activity entry: %w", err)
	}

	return nil
}

// GetByEventID retrieves an activity entry by its event ID.
func (r *ActivityRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*activity.Entry, error) {
	collection := r.db.Collection(ActivityCollectionName)

	var entry activity.Entry
	err := collection.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, activity.ErrEntryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get activity entry",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get activity entry: %w", err)
	}

	return &entry, nil
}

// List retrieves paginated activity entries, newest first.
func (r *ActivityRepository) List(ctx context.Context, filter activity.Filter, limit, offset int) ([]*activity.Entry, error) {
	collection := r.db.Collection(ActivityCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		r.logger.Error("Failed to list activity entries", "error", err)
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []*activity.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode activity entries", "error", err)
		return nil, fmt.Errorf("failed to decode activity entries: %w", err)
	}

	return entries, nil
}

// Count counts activity entries matching the filter
func (r *ActivityRepository) Count(ctx context.Context, filter activity.Filter) (int64, error) {
	count, err := r.db.Collection(ActivityCollectionName).CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count activity entries", "error", err)
		return 0, fmt.Errorf("failed to count activity entries: %w", err)
	}
	return count, nil
}

func buildFilter(f activity.Filter) bson.M {
	filter := bson.M{}
	if f.EntityType != "" {
		filter["entity_type"] = f.EntityType
	}
	if f.EntityID != uuid.Nil {
		filter["entity_id"] = f.EntityID
	}
	if f.ActorID != uuid.Nil {
		filter["actor_id"] = f.ActorID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = *f.From
		}
		if f.To != nil {
			window["$lte"] = *f.To
		}
		filter["occurred_at"] = window
	}
	return filter
}
