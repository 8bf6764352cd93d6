package db

import (
	"time"
)

// Mod mirrors a mod.io mod. IDs come from the catalog and are never generated locally.
type Mod struct {
	ID          uint32  `gorm:"primaryKey;autoIncrement:false"`
	Name        string  // Display name
	NameID      string  // URL slug
	Summary     string  // Short summary
	Description string  // Long description (HTML)
	FileID      *uint32 `gorm:"index"` // Current modfile, nil when the mod has none
}

func (Mod) TableName() string { return "mod" }

// File is one released archive of a mod.
type File struct {
	ID        uint32    `gorm:"primaryKey;autoIncrement:false"`
	ModID     uint32    `gorm:"index;not null"`
	DateAdded time.Time // Upload time on mod.io
	HashMD5   string    `gorm:"column:hash_md5;index"` // Local archive key
	Filename  string
	Version   string
	Changelog string
}

func (File) TableName() string { return "modfile" }

// PathEntry is one asset path packed inside a file's archive.
type PathEntry struct {
	ID              uint    `gorm:"primaryKey"`
	FileID          uint32  `gorm:"index;not null"`
	Path            string  `gorm:"not null"`
	PathNoExtension string  `gorm:"not null"`
	Extension       *string // nil when the file name has no extension
	Name            *string // File stem
}

func (PathEntry) TableName() string { return "pack_file" }
