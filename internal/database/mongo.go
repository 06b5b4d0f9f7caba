package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"techmarket-bootstrap/internal/config"
	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

var _ SchemaDriver = (*MongoDriver)(nil)

type MongoDriver struct {
	cfg    config.Mongo
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoDriver(cfg config.Mongo) *MongoDriver {
	return &MongoDriver{cfg: cfg}
}

// Connect selects the target database and authenticates against the
// configured auth source. The ping forces the handshake so bad credentials
// surface here rather than on the first structural change.
func (md *MongoDriver) Connect(ctx context.Context) error {
	opts := options.Client().ApplyURI(md.cfg.URI)
	if md.cfg.Username != "" {
		opts.SetAuth(options.Credential{
			AuthSource: md.cfg.AuthSource,
			Username:   md.cfg.Username,
			Password:   md.cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		if isMongoAuthError(err) {
			return classify(ErrAuthentication, err)
		}
		return err
	}

	md.client = client
	md.db = client.Database(md.cfg.Database)
	return nil
}

func (md *MongoDriver) Close() error {
	if md.client == nil {
		return nil
	}
	return md.client.Disconnect(context.Background())
}

// Reset drops the schema's collections and leaves the rest of the database
// alone.
func (md *MongoDriver) Reset(ctx context.Context) error {
	for _, name := range schema.Collections() {
		if err := md.db.Collection(name).Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (md *MongoDriver) collection(name string) (*mongo.Collection, error) {
	if !schema.IsCollection(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return md.db.Collection(name), nil
}

func (md *MongoDriver) ListCollections(ctx context.Context) ([]string, error) {
	return md.db.ListCollectionNames(ctx, bson.D{})
}

func (md *MongoDriver) EnsureCollection(ctx context.Context, name string) error {
	if !schema.IsCollection(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	err := md.db.CreateCollection(ctx, name)
	if err != nil && !isMongoNamespaceExists(err) {
		return err
	}
	return nil
}

func indexModel(idx schema.Index) mongo.IndexModel {
	keys := make(bson.D, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	opts := options.Index().SetName(idx.Name())
	if idx.Unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

// EnsureIndex creates idx. The server accepts an identical index as a no-op;
// duplicate values under a unique index and a same-named index with other
// options are schema conflicts.
func (md *MongoDriver) EnsureIndex(ctx context.Context, idx schema.Index) error {
	coll, err := md.collection(idx.Collection)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, indexModel(idx))
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err), isMongoIndexConflict(err):
		return classify(ErrSchemaConflict, err)
	}
	return err
}

func (md *MongoDriver) InsertCustomer(ctx context.Context, c *model.Customer) error {
	res, err := md.db.Collection(schema.CollCustomers).InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return classify(ErrDuplicateKey, err)
		}
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return nil
}

func (md *MongoDriver) InsertProducts(ctx context.Context, products []model.Product) error {
	docs := make([]interface{}, len(products))
	for i := range products {
		docs[i] = products[i]
	}
	return md.insertMany(ctx, schema.CollProducts, docs)
}

func (md *MongoDriver) InsertPayments(ctx context.Context, payments []model.Payment) error {
	docs := make([]interface{}, len(payments))
	for i := range payments {
		docs[i] = payments[i]
	}
	return md.insertMany(ctx, schema.CollPayments, docs)
}

func (md *MongoDriver) insertMany(ctx context.Context, collection string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := md.db.Collection(collection).InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return classify(ErrDuplicateKey, err)
	}
	return err
}

func (md *MongoDriver) CustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var c model.Customer
	err := md.db.Collection(schema.CollCustomers).FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (md *MongoDriver) Count(ctx context.Context, collection string) (int64, error) {
	coll, err := md.collection(collection)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.D{})
}

func (md *MongoDriver) Indexes(ctx context.Context, collection string) ([]schema.Index, error) {
	coll, err := md.collection(collection)
	if err != nil {
		return nil, err
	}
	specs, err := coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return nil, err
	}

	var out []schema.Index
	for _, spec := range specs {
		if spec.Name == "_id_" {
			continue
		}
		elems, err := spec.KeysDocument.Elements()
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", spec.Name, err)
		}
		idx := schema.Index{
			Collection: collection,
			Unique:     spec.Unique != nil && *spec.Unique,
		}
		for _, e := range elems {
			idx.Keys = append(idx.Keys, schema.IndexKey{Field: e.Key(), Direction: keyDirection(e.Value())})
		}
		out = append(out, idx)
	}
	return out, nil
}

// keyDirection maps a key pattern value to a Direction. Special index types
// such as "text" or "2dsphere" map to 0.
func keyDirection(v bson.RawValue) schema.Direction {
	var n float64
	switch v.Type {
	case bsontype.Int32:
		n = float64(v.Int32())
	case bsontype.Int64:
		n = float64(v.Int64())
	case bsontype.Double:
		n = v.Double()
	}
	switch {
	case n > 0:
		return schema.Ascending
	case n < 0:
		return schema.Descending
	}
	return 0
}

func (md *MongoDriver) ExplainIndex(ctx context.Context, q schema.Query) (string, error) {
	find := bson.D{
		{Key: "find", Value: q.Collection},
		{Key: "filter", Value: q.Filter()},
	}
	if len(q.Sort) > 0 {
		find = append(find, bson.E{Key: "sort", Value: q.SortDoc()})
	}
	if q.Limit > 0 {
		find = append(find, bson.E{Key: "limit", Value: q.Limit})
	}
	cmd := bson.D{
		{Key: "explain", Value: find},
		{Key: "verbosity", Value: "queryPlanner"},
	}

	raw, err := md.db.RunCommand(ctx, cmd).DecodeBytes()
	if err != nil {
		return "", err
	}
	plan, err := raw.LookupErr("queryPlanner", "winningPlan")
	if err != nil {
		return "", fmt.Errorf("explain %s: no winning plan: %w", q.Name, err)
	}
	doc, ok := plan.DocumentOK()
	if !ok {
		return "", fmt.Errorf("explain %s: winning plan is %s, not a document", q.Name, plan.Type)
	}
	return scannedIndex(doc), nil
}

// scannedIndex walks a plan tree and returns the index name of the first
// index scan stage, searching inputStage, inputStages, queryPlan and any
// other nested document or array.
func scannedIndex(plan bson.Raw) string {
	if stage, _ := plan.Lookup("stage").StringValueOK(); stage == "IXSCAN" || stage == "EXPRESS_IXSCAN" {
		name, _ := plan.Lookup("indexName").StringValueOK()
		return name
	}

	elems, err := plan.Elements()
	if err != nil {
		return ""
	}
	for _, e := range elems {
		v := e.Value()
		switch v.Type {
		case bsontype.EmbeddedDocument:
			if name := scannedIndex(v.Document()); name != "" {
				return name
			}
		case bsontype.Array:
			values, err := v.Array().Values()
			if err != nil {
				continue
			}
			for _, item := range values {
				if d, ok := item.DocumentOK(); ok {
					if name := scannedIndex(d); name != "" {
						return name
					}
				}
			}
		}
	}
	return ""
}

func (md *MongoDriver) Find(ctx context.Context, q schema.Query) (int, error) {
	coll, err := md.collection(q.Collection)
	if err != nil {
		return 0, err
	}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})
	if len(q.Sort) > 0 {
		opts.SetSort(q.SortDoc())
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := coll.Find(ctx, q.Filter(), opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	n := 0
	for cursor.Next(ctx) {
		n++
	}
	return n, cursor.Err()
}
