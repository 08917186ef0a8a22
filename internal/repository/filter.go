package repository

import "gorm.io/gorm"

// containsFold adds a case-insensitive substring match on column when value is set.
func containsFold(db *gorm.DB, column, value string) *gorm.DB {
	if value == "" {
		return db
	}
	return db.Where("LOWER("+column+") LIKE LOWER(?)", "%"+value+"%")
}

// equals adds an exact match on column when value is set.
func equals(db *gorm.DB, column, value string) *gorm.DB {
	if value == "" {
		return db
	}
	return db.Where(column+" = ?", value)
}

func paginate(db *gorm.DB, skip, limit int) *gorm.DB {
	if skip > 0 {
		db = db.Offset(skip)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db
}
