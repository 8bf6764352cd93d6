package modio

import "time"

// ModPage is one page of a mod listing.
type ModPage struct {
	Data        []Mod `json:"data"`
	ResultCount int   `json:"result_count"`
	ResultTotal int   `json:"result_total"`
}

// Mod is a mod as returned by the API (simplified).
type Mod struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	NameID      string `json:"name_id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	// Modfile is the current file, nil when the mod has none.
	Modfile *File `json:"modfile"`
}

// CurrentFile returns the current file, treating an empty object as absent.
func (m Mod) CurrentFile() *File {
	if m.Modfile == nil || m.Modfile.ID == 0 {
		return nil
	}
	return m.Modfile
}

// File is a released modfile.
type File struct {
	ID        uint32   `json:"id"`
	ModID     uint32   `json:"mod_id"`
	DateAdded int64    `json:"date_added"`
	Filesize  int64    `json:"filesize"`
	Filehash  Filehash `json:"filehash"`
	Filename  string   `json:"filename"`
	Version   string   `json:"version"`
	Changelog string   `json:"changelog"`
	Download  Download `json:"download"`
}

// Added converts the unix timestamp of the upload to UTC.
func (f File) Added() time.Time {
	return time.Unix(f.DateAdded, 0).UTC()
}

type Filehash struct {
	MD5 string `json:"md5"`
}

type Download struct {
	BinaryURL   string `json:"binary_url"`
	DateExpires int64  `json:"date_expires"`
}
