package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
)

// applicationDoc は応募コレクションのドキュメント。
type applicationDoc struct {
	model.Application `bson:",inline"`

	ID primitive.ObjectID `bson:"_id,omitempty"`
}

func (d applicationDoc) toModel() model.Application {
	a := d.Application
	a.ID = d.ID.Hex()
	return a
}

// CreateApplication は応募を作成する。同じ奨学金への応募が既にある場合はErrConflictを返す。
func (s *Store) CreateApplication(ctx context.Context, a model.Application) (model.Application, error) {
	a.Status = model.StatusPending
	a.Feedback = ""
	if a.AppliedAt.IsZero() {
		a.AppliedAt = time.Now()
	}
	a.AppliedAt = a.AppliedAt.UTC()

	doc := applicationDoc{ID: primitive.NewObjectID(), Application: a}
	if _, err := s.applications.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Application{}, store.ErrConflict
		}
		return model.Application{}, fmt.Errorf("応募の作成に失敗: %w", err)
	}
	return doc.toModel(), nil
}

// applicantFields は応募者が入力するフィールドを$setのドキュメントに変換する。
func applicantFields(a model.Application) bson.D {
	return bson.D{
		{Key: "userName", Value: a.UserName},
		{Key: "phone", Value: a.Phone},
		{Key: "photo", Value: a.Photo},
		{Key: "address", Value: a.Address},
		{Key: "gender", Value: a.Gender},
		{Key: "degree", Value: a.Degree},
		{Key: "sscResult", Value: a.SSCResult},
		{Key: "hscResult", Value: a.HSCResult},
		{Key: "studyGap", Value: a.StudyGap},
	}
}

// UpsertApplication は(email, scholarshipId)をキーに応募を作成または更新する。
// 既存の応募では応募者のフィールドのみ更新し、審査状態は維持する。
func (s *Store) UpsertApplication(ctx context.Context, a model.Application) (model.Application, error) {
	var doc applicationDoc
	err := s.applications.FindOneAndUpdate(ctx,
		bson.D{{Key: "email", Value: a.Email}, {Key: "scholarshipId", Value: a.ScholarshipID}},
		bson.D{
			{Key: "$set", Value: applicantFields(a)},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "status", Value: model.StatusPending},
				{Key: "feedback", Value: ""},
				{Key: "appliedAt", Value: time.Now().UTC()},
			}},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return model.Application{}, fmt.Errorf("応募の保存に失敗: %w", err)
	}
	return doc.toModel(), nil
}

// GetApplication はIDで応募を取得する。
func (s *Store) GetApplication(ctx context.Context, id string) (model.Application, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Application{}, err
	}
	var doc applicationDoc
	if err := s.applications.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return model.Application{}, notFound(err)
	}
	return doc.toModel(), nil
}

// applicationUpdate は部分更新内容を$setのドキュメントに変換する。
func applicationUpdate(p model.ApplicationPatch) bson.D {
	d := bson.D{}
	d = set(d, "userName", p.UserName)
	d = set(d, "phone", p.Phone)
	d = set(d, "photo", p.Photo)
	d = set(d, "address", p.Address)
	d = set(d, "gender", p.Gender)
	d = set(d, "degree", p.Degree)
	d = set(d, "sscResult", p.SSCResult)
	d = set(d, "hscResult", p.HSCResult)
	d = set(d, "studyGap", p.StudyGap)
	return d
}

// UpdateApplication は応募者のフィールドを部分更新する。
func (s *Store) UpdateApplication(ctx context.Context, id string, p model.ApplicationPatch) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	update := applicationUpdate(p)
	if len(update) == 0 {
		_, err := s.GetApplication(ctx, id)
		return err
	}
	res, err := s.applications.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: update}},
	)
	if err != nil {
		return fmt.Errorf("応募の更新に失敗: %w", err)
	}
	return matchedOne(res)
}

// ReviewApplication は審査状態とフィードバックを更新する。
func (s *Store) ReviewApplication(ctx context.Context, id string, r model.ApplicationReview) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.applications.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: r.Status},
			{Key: "feedback", Value: r.Feedback},
		}}},
	)
	if err != nil {
		return fmt.Errorf("応募の審査結果の更新に失敗: %w", err)
	}
	return matchedOne(res)
}

// DeleteApplication は応募を削除する。
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.applications.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("応募の削除に失敗: %w", err)
	}
	return deletedOne(res)
}

// ListApplications は条件に一致する応募を作成順に返す。
func (s *Store) ListApplications(ctx context.Context, f model.Filter) ([]model.Application, error) {
	cur, err := s.applications.Find(ctx, filterDoc(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("応募一覧の取得に失敗: %w", err)
	}
	return decodeAll(ctx, cur, applicationDoc.toModel)
}
