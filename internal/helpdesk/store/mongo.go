package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

const (
	incidentCollection = "incidents"
	kbEntryCollection  = "kb_entries"
)

// mongoFactory implements the Factory interface over MongoDB. It is an
// alternate backend to the SQL datastore, selected by configuration.
type mongoFactory struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoFactory connects to MongoDB and prepares the collections.
func NewMongoFactory(ctx context.Context, uri, database string) (Factory, error) {
	client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	f := &mongoFactory{client: client, db: db}
	if err := f.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return f, nil
}

func (f *mongoFactory) ensureIndexes(ctx context.Context) error {
	_, err := f.db.Collection(incidentCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "incident_id", Value: 1}}, Options: mongoopts.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create incident indexes: %w", err)
	}

	_, err = f.db.Collection(kbEntryCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "kb_id", Value: 1}},
		Options: mongoopts.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create kb entry indexes: %w", err)
	}
	return nil
}

// Incidents returns the incident store.
func (f *mongoFactory) Incidents() IncidentStore {
	return &mongoIncidents{coll: f.db.Collection(incidentCollection)}
}

// KBEntries returns the knowledge base entry store.
func (f *mongoFactory) KBEntries() KBEntryStore {
	return &mongoKBEntries{coll: f.db.Collection(kbEntryCollection)}
}

// Close disconnects the client.
func (f *mongoFactory) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.client.Disconnect(ctx)
}

type mongoIncidents struct {
	coll *mongo.Collection
}

func (s *mongoIncidents) Create(ctx context.Context, incident *model.Incident) error {
	now := time.Now().UnixMilli()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, incident); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoIncidents) Get(ctx context.Context, incidentID string) (*model.Incident, error) {
	var incident model.Incident
	err := s.coll.FindOne(ctx, bson.M{"incident_id": incidentID}).Decode(&incident)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrIncidentNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &incident, nil
}

func (s *mongoIncidents) Update(ctx context.Context, incident *model.Incident) error {
	incident.UpdatedAt = time.Now().UnixMilli()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"incident_id": incident.IncidentID}, incident)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrIncidentNotFound
	}
	return nil
}

// UpdateStatus is the compare-and-set counterpart of the SQL implementation,
// the expected status rides in the filter.
func (s *mongoIncidents) UpdateStatus(ctx context.Context, incidentID string, from, to model.Status) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"incident_id": incidentID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UnixMilli()}},
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, incidentID); err != nil {
			return err
		}
		return errors.ErrInvalidTransition.WithMessagef(
			"incident %s is no longer %s", incidentID, from)
	}
	return nil
}

func (s *mongoIncidents) Delete(ctx context.Context, incidentID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"incident_id": incidentID})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.DeletedCount == 0 {
		return errors.ErrIncidentNotFound
	}
	return nil
}

func (s *mongoIncidents) List(ctx context.Context, opts IncidentListOptions) (int64, []*model.Incident, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}
	if opts.NeedsKBApproval != nil {
		filter["needs_kb_approval"] = *opts.NeedsKBApproval
	}
	if opts.SessionID != "" {
		filter["session_id"] = opts.SessionID
	}

	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	findOpts := mongoopts.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var items []*model.Incident
	if err := cursor.All(ctx, &items); err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	return count, items, nil
}

func (s *mongoIncidents) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{"_id": "$status", "total": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status model.Status `bson:"_id"`
		Total  int64        `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	counts := make(map[model.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (s *mongoIncidents) CountSince(ctx context.Context, sinceMilli int64) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": sinceMilli}})
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

type mongoKBEntries struct {
	coll *mongo.Collection
}

func (s *mongoKBEntries) Create(ctx context.Context, entry *model.KBEntry) error {
	now := time.Now().UnixMilli()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoKBEntries) Get(ctx context.Context, kbID string) (*model.KBEntry, error) {
	var entry model.KBEntry
	err := s.coll.FindOne(ctx, bson.M{"kb_id": kbID}).Decode(&entry)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrKBEntryNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &entry, nil
}

func (s *mongoKBEntries) Delete(ctx context.Context, kbID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"kb_id": kbID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoKBEntries) List(ctx context.Context, offset, limit int) (int64, []*model.KBEntry, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	findOpts := mongoopts.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if offset > 0 {
		findOpts.SetSkip(int64(offset))
	}
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var items []*model.KBEntry
	if err := cursor.All(ctx, &items); err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	return count, items, nil
}

func (s *mongoKBEntries) All(ctx context.Context) ([]*model.KBEntry, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, mongoopts.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var items []*model.KBEntry
	if err := cursor.All(ctx, &items); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return items, nil
}

func (s *mongoKBEntries) Count(ctx context.Context) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

var (
	_ Factory       = (*mongoFactory)(nil)
	_ IncidentStore = (*mongoIncidents)(nil)
	_ KBEntryStore  = (*mongoKBEntries)(nil)
)
