package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/scholarhub/internal/model"
)

func identity[T any](v T) T { return v }

// CreateUserIfAbsent はメールアドレスが未登録の場合のみApplicantとしてユーザーを作成する。
func (s *Store) CreateUserIfAbsent(ctx context.Context, u model.User) (bool, error) {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "email", Value: u.Email}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "name", Value: u.Name},
			{Key: "photoURL", Value: u.PhotoURL},
			{Key: "role", Value: model.RoleApplicant},
			{Key: "createdAt", Value: time.Now().UTC()},
		}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// UpsertUser はプロフィールを作成または更新する。既存ユーザーのロールは変更しない。
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	_, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "email", Value: u.Email}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "name", Value: u.Name},
				{Key: "photoURL", Value: u.PhotoURL},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "role", Value: model.RoleApplicant},
				{Key: "createdAt", Value: time.Now().UTC()},
			}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ユーザーの更新に失敗: %w", err)
	}
	return nil
}

// GetUser はメールアドレスでユーザーを取得する。
func (s *Store) GetUser(ctx context.Context, email string) (model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&u); err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

// ListUsers はユーザー一覧を作成順に返す。
func (s *Store) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	filter := bson.D{}
	if role != "" {
		filter = append(filter, bson.E{Key: "role", Value: role})
	}
	cur, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	return decodeAll(ctx, cur, identity[model.User])
}

// UpdateUserRole はユーザーのロールを変更する。
func (s *Store) UpdateUserRole(ctx context.Context, email string, role model.Role) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "role", Value: role}}}},
	)
	if err != nil {
		return fmt.Errorf("ロールの更新に失敗: %w", err)
	}
	return matchedOne(res)
}

// DeleteUser はユーザーを削除する。
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗: %w", err)
	}
	return deletedOne(res)
}

// RoleOf はユーザーの保存済みロールを返す。
func (s *Store) RoleOf(ctx context.Context, email string) (model.Role, error) {
	var doc struct {
		Role model.Role `bson:"role"`
	}
	err := s.users.FindOne(ctx,
		bson.D{{Key: "email", Value: email}},
		options.FindOne().SetProjection(bson.D{{Key: "role", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return "", notFound(err)
	}
	return doc.Role, nil
}
