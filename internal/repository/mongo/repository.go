// Package mongo implements ports.MediaRecordStore over MongoDB, adapted from
// the teacher's torrent-record repository (§3.1, §6.4).
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediapipeline/internal/domain"
)

type Repository struct {
	collection *mongo.Collection
}

type mediaDoc struct {
	ID                string   `bson:"_id"`
	Status            string   `bson:"status"`
	DownloaderHandle  string   `bson:"downloaderHandle,omitempty"`
	SourceURI         string   `bson:"sourceUri,omitempty"`
	Title             string   `bson:"title,omitempty"`
	SelectedRung      string   `bson:"selectedRung,omitempty"`
	TotalBytes        int64    `bson:"totalBytes"`
	DownloadedBytes   int64    `bson:"downloadedBytes"`
	DownloadProgress  float64  `bson:"downloadProgress"`
	DownloadPath      string   `bson:"downloadPath,omitempty"`
	SourceVideoPath   string   `bson:"sourceVideoPath,omitempty"`
	TranscodeProgress float64  `bson:"transcodeProgress"`
	AvailableRungs    []string `bson:"availableRungs,omitempty"`
	TranscodedPath    string   `bson:"transcodedPath,omitempty"`
	FullyTranscoded   bool     `bson:"fullyTranscoded,omitempty"`
	ErrorMessage      string   `bson:"errorMessage,omitempty"`
	LastWatchedAt     int64    `bson:"lastWatchedAt,omitempty"`
	CreatedAt         int64    `bson:"createdAt"`
	UpdatedAt         int64    `bson:"updatedAt"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *Repository) Create(ctx context.Context, rec domain.MediaRecord) error {
	doc := toDoc(rec)
	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, rec domain.MediaRecord) error {
	doc := toDoc(rec)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateProgress applies a field-scoped partial update from the Monitor or
// the Worker: only the fields present on the update are $set (§5).
func (r *Repository) UpdateProgress(ctx context.Context, id domain.MediaID, update domain.ProgressUpdate) error {
	set := bson.M{"updatedAt": time.Now().UTC().Unix()}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.DownloadedBytes != nil {
		set["downloadedBytes"] = *update.DownloadedBytes
	}
	if update.TotalBytes != nil {
		set["totalBytes"] = *update.TotalBytes
	}
	if update.DownloadedBytes != nil || update.TotalBytes != nil {
		downloaded, total := int64(0), int64(0)
		if update.DownloadedBytes != nil {
			downloaded = *update.DownloadedBytes
		}
		if update.TotalBytes != nil {
			total = *update.TotalBytes
		}
		if downloaded > 0 || total > 0 {
			set["downloadProgress"] = domain.DownloadProgressOf(downloaded, total)
		}
	}
	if update.DownloadPath != nil {
		set["downloadPath"] = *update.DownloadPath
	}
	if update.SourceVideoPath != nil {
		set["sourceVideoPath"] = *update.SourceVideoPath
	}
	if update.TranscodeProgress != nil {
		set["transcodeProgress"] = *update.TranscodeProgress
	}
	if update.AvailableRungs != nil {
		set["availableRungs"] = *update.AvailableRungs
	}
	if update.TranscodedPath != nil {
		set["transcodedPath"] = *update.TranscodedPath
	}
	if update.FullyTranscoded != nil {
		set["fullyTranscoded"] = *update.FullyTranscoded
	}
	if update.ErrorMessage != nil {
		set["errorMessage"] = *update.ErrorMessage
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	var doc mediaDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return domain.MediaRecord{}, domain.ErrNotFound
		}
		return domain.MediaRecord{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repository) List(ctx context.Context, filter domain.Filter) ([]domain.MediaRecord, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mediaDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]domain.MediaRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDoc(doc))
	}
	return records, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.MediaID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDoc(rec domain.MediaRecord) mediaDoc {
	var lastWatched int64
	if rec.LastWatchedAt != nil {
		lastWatched = rec.LastWatchedAt.Unix()
	}
	return mediaDoc{
		ID:                string(rec.ID),
		Status:            string(rec.Status),
		DownloaderHandle:  rec.DownloaderHandle,
		SourceURI:         rec.SourceURI,
		Title:             rec.Title,
		SelectedRung:      string(rec.SelectedRung),
		TotalBytes:        rec.TotalBytes,
		DownloadedBytes:   rec.DownloadedBytes,
		DownloadProgress:  rec.DownloadProgress,
		DownloadPath:      rec.DownloadPath,
		SourceVideoPath:   rec.SourceVideoPath,
		TranscodeProgress: rec.TranscodeProgress,
		AvailableRungs:    rec.AvailableRungs,
		TranscodedPath:    rec.TranscodedPath,
		FullyTranscoded:   rec.FullyTranscoded,
		ErrorMessage:      rec.ErrorMessage,
		LastWatchedAt:     lastWatched,
		CreatedAt:         rec.CreatedAt.Unix(),
		UpdatedAt:         rec.UpdatedAt.Unix(),
	}
}

func fromDoc(doc mediaDoc) domain.MediaRecord {
	rec := domain.MediaRecord{
		ID:                domain.MediaID(doc.ID),
		Status:            domain.Status(doc.Status),
		DownloaderHandle:  doc.DownloaderHandle,
		SourceURI:         doc.SourceURI,
		Title:             doc.Title,
		SelectedRung:      domain.SourceRung(doc.SelectedRung),
		TotalBytes:        doc.TotalBytes,
		DownloadedBytes:   doc.DownloadedBytes,
		DownloadProgress:  doc.DownloadProgress,
		DownloadPath:      doc.DownloadPath,
		SourceVideoPath:   doc.SourceVideoPath,
		TranscodeProgress: doc.TranscodeProgress,
		AvailableRungs:    doc.AvailableRungs,
		TranscodedPath:    doc.TranscodedPath,
		FullyTranscoded:   doc.FullyTranscoded,
		ErrorMessage:      doc.ErrorMessage,
		CreatedAt:         timeFromUnix(doc.CreatedAt),
		UpdatedAt:         timeFromUnix(doc.UpdatedAt),
	}
	if doc.LastWatchedAt > 0 {
		t := timeFromUnix(doc.LastWatchedAt)
		rec.LastWatchedAt = &t
	}
	return rec
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}
