package repository

import (
	"context"
	"errors"
	"stackcommunity_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

var ErrUnknownVoteTarget = errors.New("unknown vote target")

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

type QuestionFilter struct {
	Tag         string
	CommunityID string
	Search      string
	Sort        string // new | votes | unanswered
}

func (r *QuestionRepository) FindWithPagination(offset, limit int, filter QuestionFilter) ([]model.Question, int64, error) {
	var questions []model.Question
	var total int64

	query := r.DB.Model(&model.Question{})

	if filter.Tag != "" {
		query = query.Where("tags LIKE ?", "%"+filter.Tag+"%")
	}
	if filter.CommunityID != "" {
		query = query.Where("community_id = ?", filter.CommunityID)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ? OR content LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Sort == "unanswered" {
		query = query.Where("answer_count = 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case "votes":
		query = query.Order("score DESC, created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	err := query.Offset(offset).Limit(limit).
		Preload("Author").
		Find(&questions).Error
	if err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

// FindByID 预加载作者与回答，已采纳的回答排在最前
func (r *QuestionRepository) FindByID(id string) (*model.Question, error) {
	var question model.Question
	err := r.DB.Preload("Author").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_accepted DESC, score DESC, created_at ASC")
		}).
		Preload("Answers.Author").
		First(&question, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionRepository) IncrementViews(id string) error {
	return r.DB.Model(&model.Question{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *QuestionRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

func (r *QuestionRepository) CountAnswersByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Answer{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// CreateAnswer 写入回答并累加问题的回答数
func (r *QuestionRepository) CreateAnswer(answer *model.Answer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		return tx.Model(&model.Question{}).
			Where("id = ?", answer.QuestionID).
			UpdateColumn("answer_count", gorm.Expr("answer_count + 1")).Error
	})
}

func (r *QuestionRepository) FindAnswerByID(id string) (*model.Answer, error) {
	var answer model.Answer
	err := r.DB.First(&answer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// AcceptAnswer 取消之前的采纳并标记新回答
func (r *QuestionRepository) AcceptAnswer(questionID, answerID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Answer{}).
			Where("question_id = ? AND is_accepted = ?", questionID, true).
			Update("is_accepted", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Answer{}).
			Where("id = ?", answerID).
			Update("is_accepted", true).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.Question{}).
			Where("id = ?", questionID).
			Updates(map[string]interface{}{"accepted_answer": answerID, "solved_at": now}).Error
	})
}

// ToggleVote 相同方向再次投票视为撤销，相反方向则改票；返回用户当前的票值（0 表示无票）
func (r *QuestionRepository) ToggleVote(userID uint, target model.VoteTarget, targetID string, value int) (int, error) {
	targetModel := r.getModel(target)
	if targetModel == nil {
		return 0, ErrUnknownVoteTarget
	}

	current := 0
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(targetModel).Where("id = ?", targetID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}

		var vote model.Vote
		err := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target, targetID).First(&vote).Error

		delta := 0
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&model.Vote{UserID: userID, TargetType: target, TargetID: targetID, Value: value}).Error; err != nil {
				return err
			}
			delta = value
			current = value
		case err != nil:
			return err
		case vote.Value == value:
			if err := tx.Delete(&vote).Error; err != nil {
				return err
			}
			delta = -value
		default:
			if err := tx.Model(&vote).Update("value", value).Error; err != nil {
				return err
			}
			delta = value - vote.Value
			current = value
		}

		return tx.Model(targetModel).
			Where("id = ?", targetID).
			UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
	})
	return current, err
}

func (r *QuestionRepository) getModel(target model.VoteTarget) interface{} {
	switch target {
	case model.VoteQuestion:
		return &model.Question{}
	case model.VoteAnswer:
		return &model.Answer{}
	}
	return nil
}
