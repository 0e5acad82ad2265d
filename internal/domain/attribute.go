package domain

// Attribute is one column of an entry's live schema.
type Attribute struct {
	Name     string `db:"name"     json:"name"`
	Type     string `db:"type"     json:"type"`
	Position int    `db:"position" json:"position"`
}
