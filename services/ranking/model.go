package ranking

import "time"

// UserRankingCounter is the id of the counter row handing out signup ranks.
const UserRankingCounter = "user_ranking"

type SystemCounter struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Value     int64     `gorm:"column:value;not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SystemCounter) TableName() string { return "system_counters" }

type UserRanking struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	RankNo    int64     `gorm:"column:rank_no;uniqueIndex;not null" json:"rank"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (UserRanking) TableName() string { return "user_rankings" }
