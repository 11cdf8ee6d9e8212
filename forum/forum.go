// Package forum implements the threaded community board: top-level threads
// with nested replies.
package forum

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/garden/model"
)

type Thread struct {
	ID       uint64 `json:"id" gorm:"primaryKey"`
	AuthorID uint64 `json:"authorID" gorm:"index"`
	Title    string `json:"title"`
	Body     string `json:"body"`

	Replies []Reply `json:"replies,omitempty" gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Reply struct {
	ID       uint64  `json:"id" gorm:"primaryKey"`
	ThreadID uint64  `json:"threadID" gorm:"index"`
	ParentID *uint64 `json:"parentID"`
	AuthorID uint64  `json:"authorID"`
	Body     string  `json:"body"`

	CreatedAt time.Time `json:"createdAt"`
}

type ThreadInput struct {
	AuthorID uint64 `json:"authorID"`
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

type ReplyInput struct {
	AuthorID uint64  `json:"authorID"`
	ParentID *uint64 `json:"parentID"`
	Body     string  `json:"body" binding:"required"`
}

type Forum struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Forum, error) {
	if err := db.AutoMigrate(&Thread{}, &Reply{}); err != nil {
		return nil, err
	}
	return &Forum{db: db}, nil
}

func (f *Forum) CreateThread(in ThreadInput) (*Thread, error) {
	if in.Title == "" {
		return nil, &model.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if in.Body == "" {
		return nil, &model.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	thread := &Thread{
		AuthorID: in.AuthorID,
		Title:    in.Title,
		Body:     in.Body,
	}
	if err := f.db.Create(thread).Error; err != nil {
		return nil, err
	}
	return thread, nil
}

func (f *Forum) Threads() ([]Thread, error) {
	var threads []Thread
	if err := f.db.Order("created_at DESC").Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (f *Forum) Thread(id uint64) (*Thread, error) {
	var thread Thread
	err := f.db.Preload("Replies").First(&thread, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Resource: "thread", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// Reply posts a reply to a thread, optionally nested under another reply of
// the same thread.
func (f *Forum) Reply(threadID uint64, in ReplyInput) (*Reply, error) {
	if in.Body == "" {
		return nil, &model.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	var reply *Reply
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var thread Thread
		if err := tx.First(&thread, threadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "thread", ID: threadID}
			}
			return err
		}

		if in.ParentID != nil {
			var parent Reply
			if err := tx.First(&parent, *in.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &model.NotFoundError{Resource: "reply", ID: *in.ParentID}
				}
				return err
			}
			if parent.ThreadID != threadID {
				return &model.ValidationError{Field: "parentID", Reason: "parent reply belongs to another thread"}
			}
		}

		reply = &Reply{
			ThreadID: threadID,
			ParentID: in.ParentID,
			AuthorID: in.AuthorID,
			Body:     in.Body,
		}
		return tx.Create(reply).Error
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (f *Forum) DeleteThread(id uint64) error {
	var thread Thread
	err := f.db.First(&thread, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.NotFoundError{Resource: "thread", ID: id}
	}
	if err != nil {
		return err
	}
	return f.db.Delete(&thread).Error
}
