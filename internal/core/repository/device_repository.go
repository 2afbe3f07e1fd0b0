package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"jttracker/internal/core/model"
)

const queryTimeout = 5 * time.Second

// ErrDuplicateDevice is returned when a device id or unique id is taken.
var ErrDuplicateDevice = errors.New("device already exists")

// DeviceRepository finders return (nil, nil) when nothing matches.
type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error
	Update(ctx context.Context, device *model.Device) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FindAll(ctx context.Context) ([]*model.Device, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error)
}

type MongoDeviceRepository struct {
	collection *mongo.Collection
}

func NewMongoDeviceRepository(db *mongo.Database) *MongoDeviceRepository {
	return &MongoDeviceRepository{
		collection: db.Collection("devices"),
	}
}

// EnsureIndexes makes uniqueid unique so two devices can never claim the same
// frame identifier.
func (r *MongoDeviceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "uniqueid", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return errors.Wrap(err, "create device indexes")
}

func (r *MongoDeviceRepository) Create(ctx context.Context, device *model.Device) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, device)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(ErrDuplicateDevice, "unique id %s", device.UniqueID)
	}
	return err
}

func (r *MongoDeviceRepository) Update(ctx context.Context, device *model.Device) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"id": device.ID}, device)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("device with ID %s not found", device.ID)
	}
	return nil
}

func (r *MongoDeviceRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	return err
}

func (r *MongoDeviceRepository) FindByID(ctx context.Context, id string) (*model.Device, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoDeviceRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error) {
	return r.findOne(ctx, bson.M{"uniqueid": uniqueID})
}

func (r *MongoDeviceRepository) findOne(ctx context.Context, filter bson.M) (*model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var device model.Device
	err := r.collection.FindOne(ctx, filter).Decode(&device)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *MongoDeviceRepository) FindAll(ctx context.Context) ([]*model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []*model.Device
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}
