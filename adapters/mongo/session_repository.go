package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// SessionRepository implements SessionRepository using MongoDB. Each session
// is one document keyed by its id, with turns as an embedded array.
type SessionRepository struct {
	collection *mongo.Collection
	opts       repositories.SessionOptions
	logger     *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database, opts repositories.SessionOptions, logger *zap.Logger) *SessionRepository {
	if opts.TTL <= 0 {
		opts.TTL = entities.DefaultSessionTTL
	}
	return &SessionRepository{
		collection: db.Collection("sessions"),
		opts:       opts,
		logger:     logger,
	}
}

// EnsureIndexes creates the TTL index so MongoDB drops expired sessions on
// its own, in addition to the scheduled sweep.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, ttlIndex); err != nil {
		r.logger.Error("Failed to create session indexes", zap.Error(err))
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	r.logger.Info("Session indexes created successfully")
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	filter := bson.M{"_id": id, "expires_at": bson.M{"$gt": time.Now().UTC()}}

	var session entities.Session
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.SessionNotFound(id)
		}
		r.logger.Error("Failed to get session", zap.Error(err), zap.String("session_id", id))
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	if session.Turns == nil {
		session.Turns = make([]entities.Turn, 0)
	}
	return &session, nil
}

// Append pushes turns with $slice enforcing the history limit, upserting the
// session. An expired document is removed first so history does not leak
// into the new session.
func (r *SessionRepository) Append(ctx context.Context, id string, turns ...entities.Turn) (*entities.Session, error) {
	if err := entities.ValidateSessionID(id); err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}

	now := time.Now().UTC()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$lte": now}}); err != nil {
		return nil, fmt.Errorf("failed to drop expired session %s: %w", id, err)
	}

	push := bson.M{"$each": turns}
	if r.opts.HistoryLimit > 0 {
		push["$slice"] = -r.opts.HistoryLimit
	}
	if turns == nil {
		push["$each"] = []entities.Turn{}
	}
	update := bson.M{
		"$push":        bson.M{"turns": push},
		"$setOnInsert": bson.M{"created_at": now},
		"$set":         bson.M{"updated_at": now, "expires_at": now.Add(r.opts.TTL)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var session entities.Session
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&session)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the document exists now
		err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&session)
	}
	if err != nil {
		r.logger.Error("Failed to append turns", zap.Error(err), zap.String("session_id", id))
		return nil, fmt.Errorf("failed to append to session %s: %w", id, err)
	}

	r.logger.Debug("Turns appended",
		zap.String("session_id", id),
		zap.Int("added", len(turns)),
		zap.Int("total", len(session.Turns)))

	return &session, nil
}

func (r *SessionRepository) Clear(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete session", zap.Error(err), zap.String("session_id", id))
		return fmt.Errorf("failed to clear session %s: %w", id, err)
	}
	if result.DeletedCount > 0 {
		r.logger.Info("Session deleted", zap.String("session_id", id))
	}
	return nil
}

func (r *SessionRepository) ExpireSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		r.logger.Error("Failed to expire sessions", zap.Error(err))
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	if result.DeletedCount > 0 {
		r.logger.Info("Expired sessions", zap.Int64("count", result.DeletedCount))
	}
	return int(result.DeletedCount), nil
}
