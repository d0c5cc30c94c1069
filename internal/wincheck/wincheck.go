package wincheck

import (
	"math"
	"sort"

	"github.com/gridhall/bingo/internal/models"
)

// Pattern identifies a win pattern
type Pattern string

const (
	// PatternLine is any fully completed row
	PatternLine Pattern = "line"

	// PatternColumn is any fully completed column
	PatternColumn Pattern = "column"

	// PatternDiagonal is either fully completed diagonal
	PatternDiagonal Pattern = "diagonal"

	// PatternCorners is all four corner cells completed
	PatternCorners Pattern = "corners"

	// PatternMajority is a threshold fraction of all cells completed by one
	// player or team
	PatternMajority Pattern = "majority"
)

// Config for the win detector
type Config struct {
	// Size is the width/height of the square grid
	Size int

	// MajorityThreshold is the fraction of cells required for the majority
	// pattern
	MajorityThreshold float64
}

// Detector evaluates a grid against enabled win patterns
type Detector struct {
	size      int
	threshold float64
}

// WinResult reports every player, team and pattern qualifying after a
// mutation. When several qualify simultaneously they are all reported; there
// is no priority order between patterns.
type WinResult struct {
	// Winners holds the qualifying player IDs
	Winners []string

	// Teams holds the qualifying team numbers in team mode
	Teams []int

	// Patterns holds the patterns that qualified
	Patterns []Pattern
}

// New creates a new win detector
func New(cfg *Config) *Detector {
	size := 5
	threshold := 0.5

	if cfg != nil {
		if cfg.Size > 0 {
			size = cfg.Size
		}
		if cfg.MajorityThreshold > 0 {
			threshold = cfg.MajorityThreshold
		}
	}

	return &Detector{
		size:      size,
		threshold: threshold,
	}
}

// Evaluate scans the grid for completed patterns. Only the row, column,
// diagonals and corner group touched by position are checked (majority is
// always recomputed globally, since any cell moves the ratio). A negative
// position forces a full scan.
//
// teams maps player ID to team number; pass nil outside team mode. The
// result is nil when nothing qualifies.
func (d *Detector) Evaluate(grid []*models.Cell, enabled []Pattern, position int, teams map[string]int) *WinResult {
	if len(grid) != d.size*d.size {
		return nil
	}

	enabledSet := make(map[Pattern]bool, len(enabled))
	for _, p := range enabled {
		enabledSet[p] = true
	}

	winners := make(map[string]bool)
	winningTeams := make(map[int]bool)
	patterns := make(map[Pattern]bool)

	record := func(pattern Pattern, players []string) {
		if len(players) == 0 {
			return
		}
		patterns[pattern] = true
		for _, p := range players {
			winners[p] = true
			if teams != nil {
				if t, ok := teams[p]; ok {
					winningTeams[t] = true
				}
			}
		}
	}

	if enabledSet[PatternLine] {
		for _, row := range d.rowsFor(position) {
			record(PatternLine, d.groupCompleters(grid, d.rowPositions(row), teams))
		}
	}

	if enabledSet[PatternColumn] {
		for _, col := range d.columnsFor(position) {
			record(PatternColumn, d.groupCompleters(grid, d.columnPositions(col), teams))
		}
	}

	if enabledSet[PatternDiagonal] {
		for _, diag := range d.diagonalsFor(position) {
			record(PatternDiagonal, d.groupCompleters(grid, diag, teams))
		}
	}

	if enabledSet[PatternCorners] && d.touchesCorner(position) {
		record(PatternCorners, d.groupCompleters(grid, d.cornerPositions(), teams))
	}

	if enabledSet[PatternMajority] {
		record(PatternMajority, d.majorityHolders(grid, teams))
	}

	if len(winners) == 0 {
		return nil
	}

	result := &WinResult{}
	for p := range winners {
		result.Winners = append(result.Winners, p)
	}
	sort.Strings(result.Winners)
	for t := range winningTeams {
		result.Teams = append(result.Teams, t)
	}
	sort.Ints(result.Teams)
	for p := range patterns {
		result.Patterns = append(result.Patterns, p)
	}
	sort.Slice(result.Patterns, func(i, j int) bool { return result.Patterns[i] < result.Patterns[j] })

	return result
}

// groupCompleters returns the players for whom every cell of the group
// counts. In team mode a group completed jointly by teammates counts for
// every teammate who contributed to it.
func (d *Detector) groupCompleters(grid []*models.Cell, group []int, teams map[string]int) []string {
	if len(group) == 0 {
		return nil
	}

	// Players completing every cell individually.
	individual := d.completerSet(grid[group[0]])
	for _, pos := range group[1:] {
		if len(individual) == 0 {
			break
		}
		cellSet := d.completerSet(grid[pos])
		for p := range individual {
			if !cellSet[p] {
				delete(individual, p)
			}
		}
	}

	result := make(map[string]bool, len(individual))
	for p := range individual {
		result[p] = true
	}

	// Teams covering the group jointly.
	if teams != nil {
		covered := make(map[int]bool)
		for t := range d.coveringTeams(grid, group, teams) {
			covered[t] = true
		}
		for t := range covered {
			for p, pt := range teams {
				if pt != t {
					continue
				}
				// Only contributors are reported as winners.
				for _, pos := range group {
					if grid[pos].CompletedByPlayer(p) {
						result[p] = true
						break
					}
				}
			}
		}
	}

	players := make([]string, 0, len(result))
	for p := range result {
		players = append(players, p)
	}
	return players
}

// coveringTeams returns the teams with every cell of the group completed by
// some member.
func (d *Detector) coveringTeams(grid []*models.Cell, group []int, teams map[string]int) map[int]bool {
	candidates := make(map[int]bool)
	for _, t := range teams {
		candidates[t] = true
	}

	for _, pos := range group {
		cell := grid[pos]
		cellTeams := make(map[int]bool)
		if cell.Marked && !cell.Blocked {
			for _, p := range cell.CompletedBy {
				if t, ok := teams[p]; ok {
					cellTeams[t] = true
				}
			}
		}
		for t := range candidates {
			if !cellTeams[t] {
				delete(candidates, t)
			}
		}
		if len(candidates) == 0 {
			break
		}
	}

	return candidates
}

// majorityHolders returns players (and teammates, in team mode) holding at
// least ceil(threshold * size^2) completed cells.
func (d *Detector) majorityHolders(grid []*models.Cell, teams map[string]int) []string {
	total := d.size * d.size
	required := int(math.Ceil(d.threshold * float64(total)))
	if required < 1 {
		required = 1
	}

	playerCounts := make(map[string]int)
	teamCounts := make(map[int]int)

	for _, cell := range grid {
		if cell == nil || !cell.Marked || cell.Blocked {
			continue
		}
		countedTeams := make(map[int]bool)
		for _, p := range cell.CompletedBy {
			playerCounts[p]++
			if teams != nil {
				if t, ok := teams[p]; ok && !countedTeams[t] {
					teamCounts[t]++
					countedTeams[t] = true
				}
			}
		}
	}

	result := make(map[string]bool)
	for p, n := range playerCounts {
		if n >= required {
			result[p] = true
		}
	}
	for t, n := range teamCounts {
		if n < required {
			continue
		}
		for p, pt := range teams {
			if pt == t && playerCounts[p] > 0 {
				result[p] = true
			}
		}
	}

	players := make([]string, 0, len(result))
	for p := range result {
		players = append(players, p)
	}
	return players
}

func (d *Detector) completerSet(cell *models.Cell) map[string]bool {
	set := make(map[string]bool)
	if cell == nil || !cell.Marked || cell.Blocked {
		return set
	}
	for _, p := range cell.CompletedBy {
		set[p] = true
	}
	return set
}

func (d *Detector) rowsFor(position int) []int {
	if position < 0 {
		rows := make([]int, d.size)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	return []int{position / d.size}
}

func (d *Detector) columnsFor(position int) []int {
	if position < 0 {
		cols := make([]int, d.size)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	return []int{position % d.size}
}

func (d *Detector) rowPositions(row int) []int {
	positions := make([]int, d.size)
	for i := 0; i < d.size; i++ {
		positions[i] = row*d.size + i
	}
	return positions
}

func (d *Detector) columnPositions(col int) []int {
	positions := make([]int, d.size)
	for i := 0; i < d.size; i++ {
		positions[i] = i*d.size + col
	}
	return positions
}

func (d *Detector) diagonalsFor(position int) [][]int {
	main := make([]int, d.size)
	anti := make([]int, d.size)
	for i := 0; i < d.size; i++ {
		main[i] = i*d.size + i
		anti[i] = i*d.size + (d.size - 1 - i)
	}

	if position < 0 {
		return [][]int{main, anti}
	}

	row := position / d.size
	col := position % d.size

	var diags [][]int
	if row == col {
		diags = append(diags, main)
	}
	if row+col == d.size-1 {
		diags = append(diags, anti)
	}
	return diags
}

func (d *Detector) cornerPositions() []int {
	last := d.size - 1
	return []int{0, last, last * d.size, last*d.size + last}
}

func (d *Detector) touchesCorner(position int) bool {
	if position < 0 {
		return true
	}
	for _, c := range d.cornerPositions() {
		if c == position {
			return true
		}
	}
	return false
}
