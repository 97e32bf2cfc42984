// Package model は奨学金応募プラットフォームのドメインモデルを定義する。
//
// JSONのフィールド名は既存のフロントエンドとの互換性のためcamelCaseとする。
package model

import (
	"time"
)

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleApplicant は奨学金に応募する一般ユーザー。ロール未設定時の既定値。
	RoleApplicant Role = "Applicant"
	// RoleModerator は奨学金と応募を管理するモデレーター。
	RoleModerator Role = "Moderator"
	// RoleAdmin はユーザーを管理する管理者。
	RoleAdmin Role = "Admin"
)

// Valid はロールが既知の値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ApplicationStatus は応募の審査状態を表す。
type ApplicationStatus string

const (
	// StatusPending は審査待ち。応募作成時の既定値。
	StatusPending ApplicationStatus = "pending"
	// StatusProcessing は審査中。
	StatusProcessing ApplicationStatus = "processing"
	// StatusCompleted は審査完了。
	StatusCompleted ApplicationStatus = "completed"
	// StatusRejected は不採用。
	StatusRejected ApplicationStatus = "rejected"
)

// Valid は審査状態が既知の値かどうかを返す。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

// User はプラットフォームの利用者。メールアドレスで一意に識別される。
type User struct {
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	PhotoURL  string    `json:"photoURL" bson:"photoURL"`
	Role      Role      `json:"role" bson:"role"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Scholarship は募集中の奨学金。
// Rating と ReviewCount はレビューから導出される集計値で、直接更新できない。
type Scholarship struct {
	ID                     string    `json:"_id" bson:"-"`
	ScholarshipName        string    `json:"scholarshipName" bson:"scholarshipName"`
	UniversityName         string    `json:"universityName" bson:"universityName"`
	UniversityImage        string    `json:"universityImage" bson:"universityImage"`
	UniversityCountry      string    `json:"universityCountry" bson:"universityCountry"`
	UniversityCity         string    `json:"universityCity" bson:"universityCity"`
	UniversityWorldRank    int       `json:"universityWorldRank" bson:"universityWorldRank"`
	SubjectCategory        string    `json:"subjectCategory" bson:"subjectCategory"`
	ScholarshipCategory    string    `json:"scholarshipCategory" bson:"scholarshipCategory"`
	Degree                 string    `json:"degree" bson:"degree"`
	TuitionFees            float64   `json:"tuitionFees" bson:"tuitionFees"`
	ApplicationFees        float64   `json:"applicationFees" bson:"applicationFees"`
	ServiceCharge          float64   `json:"serviceCharge" bson:"serviceCharge"`
	ApplicationDeadline    string    `json:"applicationDeadline" bson:"applicationDeadline"`
	PostDate               time.Time `json:"scholarshipPostDate" bson:"scholarshipPostDate"`
	PostedUserEmail        string    `json:"postedUserEmail" bson:"postedUserEmail"`
	ScholarshipDescription string    `json:"scholarshipDescription" bson:"scholarshipDescription"`
	Rating                 float64   `json:"rating" bson:"-"`
	ReviewCount            int64     `json:"reviewCount" bson:"-"`
}

// ScholarshipPatch は奨学金の部分更新内容。nilのフィールドは更新しない。
type ScholarshipPatch struct {
	ScholarshipName        *string    `json:"scholarshipName"`
	UniversityName         *string    `json:"universityName"`
	UniversityImage        *string    `json:"universityImage"`
	UniversityCountry      *string    `json:"universityCountry"`
	UniversityCity         *string    `json:"universityCity"`
	UniversityWorldRank    *int       `json:"universityWorldRank"`
	SubjectCategory        *string    `json:"subjectCategory"`
	ScholarshipCategory    *string    `json:"scholarshipCategory"`
	Degree                 *string    `json:"degree"`
	TuitionFees            *float64   `json:"tuitionFees" binding:"omitempty,gte=0"`
	ApplicationFees        *float64   `json:"applicationFees" binding:"omitempty,gte=0"`
	ServiceCharge          *float64   `json:"serviceCharge" binding:"omitempty,gte=0"`
	ApplicationDeadline    *string    `json:"applicationDeadline"`
	PostDate               *time.Time `json:"scholarshipPostDate"`
	ScholarshipDescription *string    `json:"scholarshipDescription"`
}

// ScholarshipQuery は奨学金一覧の検索条件。
type ScholarshipQuery struct {
	// Search は奨学金名・大学名・学位に対する大文字小文字を区別しない部分一致検索語。
	Search string
	// Page は1始まりのページ番号。
	Page int
	// PageSize は1ページあたりの件数。0以下の場合はページングしない。
	PageSize int
}

// Offset はページ番号とページサイズから読み飛ばす件数を計算する。
func (q ScholarshipQuery) Offset() int {
	if q.Page < 1 || q.PageSize <= 0 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ScholarshipSummary は応募・レビュー一覧に結合する奨学金のスナップショット。
type ScholarshipSummary struct {
	ID              string  `json:"_id"`
	ScholarshipName string  `json:"scholarshipName"`
	UniversityName  string  `json:"universityName"`
	ApplicationFees float64 `json:"applicationFees"`
	Rating          float64 `json:"rating"`
}

// Summary は奨学金のスナップショットを返す。
func (s Scholarship) Summary() ScholarshipSummary {
	return ScholarshipSummary{
		ID:              s.ID,
		ScholarshipName: s.ScholarshipName,
		UniversityName:  s.UniversityName,
		ApplicationFees: s.ApplicationFees,
		Rating:          s.Rating,
	}
}

// Application は奨学金への応募。(Email, ScholarshipID) の組で一意。
type Application struct {
	ID            string            `json:"_id" bson:"-"`
	Email         string            `json:"email" bson:"email"`
	ScholarshipID string            `json:"scholarshipId" bson:"scholarshipId"`
	UserName      string            `json:"userName" bson:"userName"`
	Phone         string            `json:"phone" bson:"phone"`
	Photo         string            `json:"photo" bson:"photo"`
	Address       string            `json:"address" bson:"address"`
	Gender        string            `json:"gender" bson:"gender"`
	Degree        string            `json:"degree" bson:"degree"`
	SSCResult     string            `json:"sscResult" bson:"sscResult"`
	HSCResult     string            `json:"hscResult" bson:"hscResult"`
	StudyGap      string            `json:"studyGap" bson:"studyGap"`
	Status        ApplicationStatus `json:"status" bson:"status"`
	Feedback      string            `json:"feedback" bson:"feedback"`
	AppliedAt     time.Time         `json:"appliedAt" bson:"appliedAt"`
}

// ApplicationPatch は応募者自身による部分更新内容。審査状態は含まない。
type ApplicationPatch struct {
	UserName  *string `json:"userName"`
	Phone     *string `json:"phone"`
	Photo     *string `json:"photo"`
	Address   *string `json:"address"`
	Gender    *string `json:"gender"`
	Degree    *string `json:"degree"`
	SSCResult *string `json:"sscResult"`
	HSCResult *string `json:"hscResult"`
	StudyGap  *string `json:"studyGap"`
}

// ApplicationReview はモデレーターによる審査結果。
type ApplicationReview struct {
	Status   ApplicationStatus `json:"status" binding:"required,appstatus"`
	Feedback string            `json:"feedback"`
}

// Review は奨学金に対するレビュー。
type Review struct {
	ID            string    `json:"_id" bson:"-"`
	Email         string    `json:"email" bson:"email"`
	ScholarshipID string    `json:"scholarshipId" bson:"scholarshipId"`
	UserName      string    `json:"userName" bson:"userName"`
	UserImage     string    `json:"userImage" bson:"userImage"`
	Rating        int       `json:"rating" bson:"rating"`
	Comment       string    `json:"comment" bson:"comment"`
	ReviewDate    time.Time `json:"reviewDate" bson:"reviewDate"`
}

// ReviewPatch はレビューの部分更新内容。
type ReviewPatch struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment"`
}

// Filter は応募・レビュー一覧の絞り込み条件。空のフィールドは条件にしない。
type Filter struct {
	Email         string
	ScholarshipID string
}
