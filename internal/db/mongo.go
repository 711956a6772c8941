package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImagesBucket = "images"

type Collections struct {
	Schemes    *mongo.Collection
	States     *mongo.Collection
	Categories *mongo.Collection
	Users      *mongo.Collection
	Images     *gridfs.Bucket
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(ImagesBucket))
	if err != nil {
		return nil, nil, err
	}

	cols := &Collections{
		Schemes:    db.Collection("schemes"),
		States:     db.Collection("states"),
		Categories: db.Collection("categories"),
		Users:      db.Collection("users"),
		Images:     bucket,
	}

	return client, cols, nil
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.Schemes.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "publishedOn", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "category", Value: 1}, {Key: "publishedOn", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	for _, col := range []*mongo.Collection{cols.States, cols.Categories} {
		_, err = col.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		})
		if err != nil {
			return err
		}
	}

	_, err = cols.Users.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	return nil
}
