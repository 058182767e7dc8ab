package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedback_service/internal/config"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const usersCollection = "users"

type MongoRepo struct {
	client *mongo.Client
	users  *mongo.Collection
}

type message struct {
	ID        bson.ObjectID `bson:"_id"`
	Content   string        `bson:"content"`
	CreatedAt time.Time     `bson:"createdAt"`
}

type user struct {
	ID                     bson.ObjectID `bson:"_id,omitempty"`
	Username               string        `bson:"username"`
	Email                  string        `bson:"email"`
	Password               []byte        `bson:"password"`
	IsVerified             bool          `bson:"isVerified"`
	VerificationCode       string        `bson:"verificationCode"`
	VerificationCodeExpiry time.Time     `bson:"verificationCodeExpiry"`
	IsAcceptingMessage     bool          `bson:"isAcceptingMessage"`
	CreatedAt              time.Time     `bson:"createdAt"`
	Messages               []message     `bson:"messages"`
}

func New(ctx context.Context, cfg *config.Config) (*MongoRepo, error) {
	const op = "storage.mongo.New"

	opts := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Minute)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	repo := &MongoRepo{
		client: client,
		users:  client.Database(cfg.Mongo.Database).Collection(usersCollection),
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return repo, nil
}

func (r *MongoRepo) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (r *MongoRepo) SaveUser(ctx context.Context, acc models.Account) (string, error) {
	const op = "storage.mongo.SaveUser"

	doc := user{
		Username:               acc.Username,
		Email:                  acc.Email,
		Password:               acc.PassHash,
		IsVerified:             acc.IsVerified,
		VerificationCode:       acc.VerificationCode,
		VerificationCodeExpiry: acc.VerificationCodeExpiry,
		IsAcceptingMessage:     acc.IsAcceptingMessages,
		CreatedAt:              acc.CreatedAt,
		Messages:               []message{},
	}

	res, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", storage.ErrUserExists
		}

		return "", fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("%s: unexpected inserted id type %T", op, res.InsertedID)
	}

	return id.Hex(), nil
}

func (r *MongoRepo) User(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoRepo) UserByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *MongoRepo) UserByIdentifier(ctx context.Context, identifier string) (models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: identifier}},
		bson.D{{Key: "email", Value: identifier}},
	}}})
}

func (r *MongoRepo) UserByID(ctx context.Context, id string) (models.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Account{}, storage.ErrUserNotFound
	}

	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepo) UpdatePendingUser(ctx context.Context, id string, passHash []byte, code string, expiresAt time.Time) error {
	return r.updateByID(ctx, "storage.mongo.UpdatePendingUser", id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: passHash},
		{Key: "verificationCode", Value: code},
		{Key: "verificationCodeExpiry", Value: expiresAt},
	}}})
}

func (r *MongoRepo) SetVerificationCode(ctx context.Context, id string, code string, expiresAt time.Time) error {
	return r.updateByID(ctx, "storage.mongo.SetVerificationCode", id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "verificationCode", Value: code},
		{Key: "verificationCodeExpiry", Value: expiresAt},
	}}})
}

// SetEmailVerified flips the account to verified only while it is unverified and still holds code.
func (r *MongoRepo) SetEmailVerified(ctx context.Context, id string, code string) error {
	const op = "storage.mongo.SetEmailVerified"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrUserNotFound
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "isVerified", Value: false},
		{Key: "verificationCode", Value: code},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "isVerified", Value: true},
		{Key: "verificationCode", Value: ""},
	}}}

	res, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *MongoRepo) SetAcceptingMessages(ctx context.Context, id string, accept bool) (models.Account, error) {
	const op = "storage.mongo.SetAcceptingMessages"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Account{}, storage.ErrUserNotFound
	}

	var u user

	err = r.users.FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isAcceptingMessage", Value: accept}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return u.toModel(), nil
}

func (r *MongoRepo) AppendMessage(ctx context.Context, id string, msg models.Message) (models.Message, error) {
	const op = "storage.mongo.AppendMessage"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Message{}, storage.ErrUserNotFound
	}

	doc := message{
		ID:        bson.NewObjectID(),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	res, err := r.users.UpdateOne(
		ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "messages", Value: doc}}}},
	)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return models.Message{}, storage.ErrUserNotFound
	}

	return doc.toModel(), nil
}

// messagesPipeline unwinds an account's messages newest first. Object ids grow
// with insertion order, so they break ties between equal timestamps.
func messagesPipeline(oid bson.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: oid}}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$sort", Value: bson.D{
			{Key: "messages.createdAt", Value: -1},
			{Key: "messages._id", Value: -1},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id"},
			{Key: "messages", Value: bson.D{{Key: "$push", Value: "$messages"}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "messages", Value: 1}}}},
	}
}

// Messages returns the embedded messages newest first, sorted by the database.
func (r *MongoRepo) Messages(ctx context.Context, id string) ([]models.Message, error) {
	const op = "storage.mongo.Messages"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrUserNotFound
	}

	cursor, err := r.users.Aggregate(ctx, messagesPipeline(oid))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var groups []struct {
		Messages []message `bson:"messages"`
	}

	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// $unwind drops accounts without messages, so an empty result needs an existence check.
	if len(groups) == 0 {
		n, err := r.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return nil, storage.ErrUserNotFound
		}

		return []models.Message{}, nil
	}

	out := make([]models.Message, 0, len(groups[0].Messages))
	for _, m := range groups[0].Messages {
		out = append(out, m.toModel())
	}

	return out, nil
}

func (r *MongoRepo) DeleteMessage(ctx context.Context, id string, messageID string) error {
	const op = "storage.mongo.DeleteMessage"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrMessageNotFound
	}

	mid, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return storage.ErrMessageNotFound
	}

	res, err := r.users.UpdateOne(
		ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "messages", Value: bson.D{{Key: "_id", Value: mid}}}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.ModifiedCount == 0 {
		return storage.ErrMessageNotFound
	}

	return nil
}

func (r *MongoRepo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = r.client.Disconnect(ctx)
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.D) (models.Account, error) {
	var u user

	err := r.users.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, err
	}

	return u.toModel(), nil
}

func (r *MongoRepo) updateByID(ctx context.Context, op, id string, update bson.D) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrUserNotFound
	}

	res, err := r.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (u user) toModel() models.Account {
	msgs := make([]models.Message, 0, len(u.Messages))
	for _, m := range u.Messages {
		msgs = append(msgs, m.toModel())
	}

	return models.Account{
		ID:                     u.ID.Hex(),
		Username:               u.Username,
		Email:                  u.Email,
		PassHash:               u.Password,
		IsVerified:             u.IsVerified,
		VerificationCode:       u.VerificationCode,
		VerificationCodeExpiry: u.VerificationCodeExpiry,
		IsAcceptingMessages:    u.IsAcceptingMessage,
		CreatedAt:              u.CreatedAt,
		Messages:               msgs,
	}
}

func (m message) toModel() models.Message {
	return models.Message{
		ID:        m.ID.Hex(),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
