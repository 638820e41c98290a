package gantt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"buildtrack/internal/config"
)

// Strategy is how a collision group is laid out.
type Strategy string

const (
	StrategyStack    Strategy = "stack"
	StrategyCluster  Strategy = "cluster"
	StrategyOffset   Strategy = "offset"
	StrategyCompound Strategy = "compound"
)

const (
	highPriority     = 80
	compoundMaxIcons = 4
)

// Bounds is the bounding box of a collision group.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// CollisionGroup is a set of at least two markers too close to render
// individually.
type CollisionGroup struct {
	Members  []Marker `json:"members"`
	Bounds   Bounds   `json:"bounds"`
	Strategy Strategy `json:"strategy"`
	Priority int      `json:"priority"`
	Glyph    *Marker  `json:"glyph,omitempty"`
}

// Result is the renderable marker layout. Every input marker appears
// exactly once: individually in Resolved, folded into a compound marker
// in Resolved, inside a cluster, or in Hidden when it is off-screen.
type Result struct {
	Resolved []Marker         `json:"resolved"`
	Clusters []CollisionGroup `json:"clusters"`
	Hidden   []Marker         `json:"hidden"`
	// Groups lists every collision group regardless of strategy.
	Groups []CollisionGroup `json:"groups"`
}

// Flatten returns the original markers contained in the result.
func (r Result) Flatten() []Marker {
	var out []Marker
	for _, m := range r.Resolved {
		if m.Type == MarkerCompound {
			out = append(out, m.Members...)
			continue
		}
		out = append(out, m)
	}
	for _, g := range r.Clusters {
		out = append(out, g.Members...)
	}
	return append(out, r.Hidden...)
}

// Tolerance is the horizontal distance, in percent, under which two
// markers overlap.
func Tolerance(cfg config.MarkersConfig, mode ViewMode, mobile bool) float64 {
	var tol float64
	switch mode {
	case ViewWeeks:
		tol = cfg.ToleranceWeeks
	case ViewMonths:
		tol = cfg.ToleranceMonths
	default:
		tol = cfg.ToleranceDays
	}
	if mobile {
		tol *= cfg.MobileToleranceFactor
	}
	return tol
}

// MinSpacing is the vertical distance, in pixels, under which two markers overlap.
func MinSpacing(cfg config.MarkersConfig, mobile bool) float64 {
	if mobile {
		return cfg.MinSpacingMobile
	}
	return cfg.MinSpacingDesktop
}

// Collides is symmetric in a and b.
func Collides(a, b Marker, tolerance, spacing float64) bool {
	return math.Abs(a.Position.X-b.Position.X) <= tolerance &&
		math.Abs(a.Position.Y-b.Position.Y) < spacing
}

// DetectCollisions groups markers transitively: a marker colliding with
// any member of a group joins that group. Markers that collide with
// nothing are returned as singles. Group members keep input order.
func DetectCollisions(markers []Marker, tolerance, spacing float64) (groups [][]Marker, singles []Marker) {
	processed := make([]bool, len(markers))
	for i := range markers {
		if processed[i] {
			continue
		}
		processed[i] = true
		members := []int{i}
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for j := range markers {
				if processed[j] || !Collides(markers[cur], markers[j], tolerance, spacing) {
					continue
				}
				processed[j] = true
				members = append(members, j)
				queue = append(queue, j)
			}
		}
		if len(members) < 2 {
			singles = append(singles, markers[i])
			continue
		}
		sort.Ints(members)
		group := make([]Marker, len(members))
		for k, idx := range members {
			group[k] = markers[idx]
		}
		groups = append(groups, group)
	}
	return groups, singles
}

// SelectStrategy picks the layout for a collision group.
func SelectStrategy(members []Marker, mode ViewMode, mobile bool) Strategy {
	n := len(members)
	mixed := distinctTypes(members) > 1
	if mobile {
		switch {
		case n > 3:
			return StrategyCluster
		case mixed:
			return StrategyCompound
		default:
			return StrategyStack
		}
	}
	switch {
	case n > 5:
		return StrategyCluster
	case mode == ViewDays && n <= 3 && maxPriority(members) >= highPriority:
		return StrategyStack
	case mixed && n <= 3:
		return StrategyCompound
	case mode == ViewWeeks || mode == ViewMonths:
		return StrategyOffset
	default:
		return StrategyStack
	}
}

// Resolve detects collisions among markers and lays out each group.
// Off-screen markers are excluded from detection and returned in Hidden.
func Resolve(markers []Marker, mode ViewMode, mobile bool, cfg config.MarkersConfig) Result {
	res := Result{Resolved: []Marker{}, Clusters: []CollisionGroup{}, Hidden: []Marker{}, Groups: []CollisionGroup{}}

	visible := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if !m.Visible() {
			res.Hidden = append(res.Hidden, m)
			continue
		}
		visible = append(visible, m)
	}

	groups, singles := DetectCollisions(visible, Tolerance(cfg, mode, mobile), MinSpacing(cfg, mobile))
	res.Resolved = append(res.Resolved, singles...)

	for _, members := range groups {
		group := CollisionGroup{
			Members:  byPriority(members),
			Bounds:   boundsOf(members),
			Strategy: SelectStrategy(members, mode, mobile),
			Priority: maxPriority(members),
		}

		switch group.Strategy {
		case StrategyStack:
			res.Resolved = append(res.Resolved, stack(group.Members, stackSpacing(cfg, mobile))...)
		case StrategyOffset:
			res.Resolved = append(res.Resolved, offset(group.Members, offsetStep(cfg, mode))...)
		case StrategyCluster:
			group.Glyph = clusterGlyph(group.Members, group.Priority)
			res.Clusters = append(res.Clusters, group)
		case StrategyCompound:
			group.Glyph = compoundGlyph(group.Members, group.Priority)
			res.Resolved = append(res.Resolved, *group.Glyph)
		}
		res.Groups = append(res.Groups, group)
	}

	sort.SliceStable(res.Resolved, func(i, j int) bool {
		return res.Resolved[i].Position.X < res.Resolved[j].Position.X
	})
	return res
}

// stack keeps the top member in place and drops the rest below it.
func stack(members []Marker, spacing float64) []Marker {
	top := members[0].Position
	out := make([]Marker, len(members))
	for rank, m := range members {
		m.Position = Point{X: top.X, Y: top.Y + float64(rank)*spacing}
		out[rank] = m
	}
	return out
}

// offset spreads members horizontally around the group's mean x. A spread
// that would cross either edge is shifted as a whole, and one wider than the
// timeline is narrowed to fit, so members never land on the same x.
func offset(members []Marker, step float64) []Marker {
	var mean float64
	for _, m := range members {
		mean += m.Position.X
	}
	mean /= float64(len(members))

	center := float64(len(members)-1) / 2
	if center > 0 && center*step*2 > 100 {
		step = 100 / (center * 2)
	}
	half := center * step
	mean = clamp(mean, half, 100-half)

	out := make([]Marker, len(members))
	for rank, m := range members {
		m.Position.X = mean + (float64(rank)-center)*step
		out[rank] = m
	}
	return out
}

func clusterGlyph(members []Marker, priority int) *Marker {
	top := members[0]
	titles := make([]string, 0, len(members))
	for _, m := range members {
		titles = append(titles, tooltipTitle(m))
	}
	return &Marker{
		ID:       "cluster-" + top.ID,
		Type:     MarkerCluster,
		Position: top.Position,
		Priority: priority,
		Date:     top.Date,
		Members:  members,
		Tooltip: &Tooltip{
			Title:       fmt.Sprintf("%d events", len(members)),
			Description: strings.Join(titles, "\n"),
			Details:     map[string]string{"count": fmt.Sprint(len(members))},
		},
	}
}

func compoundGlyph(members []Marker, priority int) *Marker {
	top := members[0]
	icons := make([]MarkerType, 0, compoundMaxIcons)
	titles := make([]string, 0, len(members))
	taskIDs := []int64{}
	for i, m := range members {
		if i < compoundMaxIcons {
			icons = append(icons, m.Type)
		}
		titles = append(titles, tooltipTitle(m))
		taskIDs = append(taskIDs, m.TaskIDs...)
	}
	overflow := 0
	if len(members) > compoundMaxIcons {
		overflow = len(members) - compoundMaxIcons
	}
	return &Marker{
		ID:       "compound-" + top.ID,
		Type:     MarkerCompound,
		Position: top.Position,
		Priority: priority,
		Date:     top.Date,
		TaskIDs:  taskIDs,
		Members:  members,
		Icons:    icons,
		Overflow: overflow,
		Tooltip: &Tooltip{
			Title:       strings.Join(titles, " · "),
			Description: fmt.Sprintf("%d overlapping events", len(members)),
		},
	}
}

func tooltipTitle(m Marker) string {
	if m.Tooltip != nil && m.Tooltip.Title != "" {
		return m.Tooltip.Title
	}
	return m.ID
}

// byPriority returns a copy sorted by descending priority, then x, then id.
func byPriority(members []Marker) []Marker {
	out := append([]Marker(nil), members...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Position.X != out[j].Position.X {
			return out[i].Position.X < out[j].Position.X
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func boundsOf(members []Marker) Bounds {
	b := Bounds{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	for _, m := range members {
		b.MinX = math.Min(b.MinX, m.Position.X)
		b.MaxX = math.Max(b.MaxX, m.Position.X)
		b.MinY = math.Min(b.MinY, m.Position.Y)
		b.MaxY = math.Max(b.MaxY, m.Position.Y)
	}
	return b
}

func maxPriority(members []Marker) int {
	p := 0
	for _, m := range members {
		if m.Priority > p {
			p = m.Priority
		}
	}
	return p
}

func distinctTypes(members []Marker) int {
	seen := map[MarkerType]struct{}{}
	for _, m := range members {
		seen[m.Type] = struct{}{}
	}
	return len(seen)
}

func stackSpacing(cfg config.MarkersConfig, mobile bool) float64 {
	if mobile {
		return cfg.StackSpacingMobile
	}
	return cfg.StackSpacingDesktop
}

func offsetStep(cfg config.MarkersConfig, mode ViewMode) float64 {
	switch mode {
	case ViewWeeks:
		return cfg.OffsetStepWeeks
	case ViewMonths:
		return cfg.OffsetStepMonths
	default:
		return cfg.OffsetStepDays
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
