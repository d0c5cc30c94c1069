package models

// BoardLayout is the ordered cell content produced by the board authoring
// system. The engine only consumes it to seed a session's grid.
type BoardLayout struct {
	// BoardID is the identifier of the source board
	BoardID string `json:"board_id"`

	// Size is the width/height of the square grid
	Size int `json:"size"`

	// Cells holds the content reference for each position, length Size*Size
	Cells []string `json:"cells"`
}

// Valid reports whether the layout describes a complete square grid
func (b *BoardLayout) Valid() bool {
	return b.Size > 0 && len(b.Cells) == b.Size*b.Size
}
