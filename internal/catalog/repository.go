package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, kind Kind, item Entry) error
	Update(ctx context.Context, kind Kind, id string, set bson.M) (Entry, error)
	Delete(ctx context.Context, kind Kind, id string) (bool, error)
	List(ctx context.Context, kind Kind) ([]Entry, error)
	GetBySlug(ctx context.Context, kind Kind, slug string) (Entry, error)
}

type MongoRepository struct {
	cols map[Kind]*mongo.Collection
}

func NewRepository(states, categories *mongo.Collection) *MongoRepository {
	return &MongoRepository{cols: map[Kind]*mongo.Collection{
		KindStates:     states,
		KindCategories: categories,
	}}
}

func (r *MongoRepository) col(kind Kind) (*mongo.Collection, error) {
	col, ok := r.cols[kind]
	if !ok || col == nil {
		return nil, ErrUnknownKind
	}
	return col, nil
}

func (r *MongoRepository) Create(ctx context.Context, kind Kind, item Entry) error {
	col, err := r.col(kind)
	if err != nil {
		return err
	}
	_, err = col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, kind Kind, id string, set bson.M) (Entry, error) {
	col, err := r.col(kind)
	if err != nil {
		return Entry{}, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Entry
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Entry{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, kind Kind, id string) (bool, error) {
	col, err := r.col(kind)
	if err != nil {
		return false, err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) List(ctx context.Context, kind Kind) ([]Entry, error) {
	col, err := r.col(kind)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Entry, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetBySlug(ctx context.Context, kind Kind, slug string) (Entry, error) {
	col, err := r.col(kind)
	if err != nil {
		return Entry{}, err
	}
	var item Entry
	if err := col.FindOne(ctx, bson.M{"slug": slug}).Decode(&item); err != nil {
		return Entry{}, err
	}
	return item, nil
}
