package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 行锁；sqlite 不支持 FOR UPDATE，写事务本身已串行
func lockRows(db *gorm.DB, lock bool) *gorm.DB {
	if !lock || db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
