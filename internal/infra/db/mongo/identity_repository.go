package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"stitchtalk/internal/domain/identity"
)

// IdentityRepository reads display profiles from the creator and
// customer collections and writes last-seen stamps back to them.
type IdentityRepository struct {
	creators  *mongo.Collection
	customers *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		creators:  db.Collection("creators"),
		customers: db.Collection("customers"),
	}
}

func (r *IdentityRepository) Resolve(ctx context.Context, ref identity.Ref) (*identity.Profile, error) {
	col, err := r.collection(ref.Kind)
	if err != nil {
		return nil, err
	}
	var doc profileDocument
	if err := col.FindOne(ctx, bson.M{"_id": ref.ID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: resolve profile: %w", err)
	}
	profile := doc.toProfile(ref.Kind)
	return &profile, nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]identity.Profile, error) {
	creators, err := r.listKind(ctx, identity.KindCreator)
	if err != nil {
		return nil, err
	}
	customers, err := r.listKind(ctx, identity.KindCustomer)
	if err != nil {
		return nil, err
	}
	return append(creators, customers...), nil
}

func (r *IdentityRepository) TouchLastSeen(ctx context.Context, ref identity.Ref, at time.Time) error {
	col, err := r.collection(ref.Kind)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"last_seen": at.UTC().UnixMilli()}}
	res, err := col.UpdateOne(ctx, bson.M{"_id": ref.ID}, update)
	if err != nil {
		return fmt.Errorf("mongo: touch last seen: %w", err)
	}
	if res.MatchedCount == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) listKind(ctx context.Context, kind identity.Kind) ([]identity.Profile, error) {
	col, err := r.collection(kind)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo: list %s profiles: %w", kind, err)
	}
	defer cursor.Close(ctx)

	var out []identity.Profile
	for cursor.Next(ctx) {
		var doc profileDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode profile: %w", err)
		}
		out = append(out, doc.toProfile(kind))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate profiles: %w", err)
	}
	return out, nil
}

func (r *IdentityRepository) collection(kind identity.Kind) (*mongo.Collection, error) {
	switch kind {
	case identity.KindCreator:
		return r.creators, nil
	case identity.KindCustomer:
		return r.customers, nil
	default:
		return nil, identity.ErrInvalidKind
	}
}

type profileDocument struct {
	ID             string `bson:"_id"`
	Name           string `bson:"name"`
	Type           string `bson:"type,omitempty"`
	ProfilePicture string `bson:"profile_picture,omitempty"`
	LastSeen       int64  `bson:"last_seen,omitempty"`
}

func (d profileDocument) toProfile(kind identity.Kind) identity.Profile {
	role := "customer"
	if kind == identity.KindCreator {
		// Creator subtype: tailor, designer or reseller.
		role = strings.ToLower(strings.TrimSpace(d.Type))
	}
	profile := identity.Profile{
		ID:        d.ID,
		Kind:      kind,
		Name:      d.Name,
		Role:      role,
		AvatarURL: d.ProfilePicture,
	}
	if d.LastSeen > 0 {
		profile.LastSeenAt = time.UnixMilli(d.LastSeen).UTC()
	}
	return profile
}

var _ identity.Directory = (*IdentityRepository)(nil)
