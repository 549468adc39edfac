package gitbot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// linesPageSize is the number of lines advanced or rewound per
	// button press.
	linesPageSize = 25

	linesComponentPrefix = "lines"

	linesActionBackward = "backward"
	linesActionForward  = "forward"
	linesActionRevert   = "revert"
)

// nextLineRange computes the line range reached by stepping from
// (l1, l2) in the given direction. A zero l2 means the current view is
// a single line. Both returned bounds are clamped to at least 1.
func nextLineRange(l1 int, l2 int, forward bool) (int, int) {
	if forward {
		if l2 != 0 {
			l1 = l2 + 1
			l2 += linesPageSize
		} else {
			l2 = l1 + linesPageSize
		}
	} else {
		l2 = l1 - 1
		l1 -= linesPageSize
	}
	if l1 < 1 {
		l1 = 1
	}
	if l2 < 1 {
		l2 = 1
	}
	return l1, l2
}

// LinesView tracks the state of one paginated snippet message. The
// original line range is kept so the revert button can restore it.
type LinesView struct {
	ID  string
	Ref *SnippetRef

	L1 int
	L2 int

	OriginalL1 int
	OriginalL2 int

	// RevertEnabled is false until the user steps away from the
	// original range, and false again right after reverting.
	RevertEnabled bool

	CreatedAt time.Time
}

// NewLinesView creates view state from a parsed snippet reference.
func NewLinesView(id string, ref *SnippetRef) *LinesView {
	return &LinesView{
		ID:         id,
		Ref:        ref,
		L1:         ref.L1,
		L2:         ref.L2,
		OriginalL1: ref.L1,
		OriginalL2: ref.L2,
		CreatedAt:  time.Now(),
	}
}

// Step advances or rewinds the view by one page and enables reverting.
func (v *LinesView) Step(forward bool) {
	v.L1, v.L2 = nextLineRange(v.L1, v.L2, forward)
	v.RevertEnabled = true
}

// Revert restores the original line range and disables the revert
// button until the range changes again.
func (v *LinesView) Revert() {
	v.L1 = v.OriginalL1
	v.L2 = v.OriginalL2
	v.RevertEnabled = false
}

// backwardRange returns the range the backward button would show.
func (v *LinesView) backwardRange() (int, int) {
	return nextLineRange(v.L1, v.L2, false)
}

// forwardRange returns the range the forward button would show.
func (v *LinesView) forwardRange() (int, int) {
	return nextLineRange(v.L1, v.L2, true)
}

// buttonLabel renders a range as a button label. A degenerate range,
// where both bounds collapsed onto the same line, uses the single-line
// form instead.
func buttonLabel(loc *Localizer, locale string, l1 int, l2 int) string {
	if l1 == l2 {
		return loc.Get(locale, "views.lines.view", l1)
	}
	return loc.Get(locale, "views.lines.view_from_to", l1, l2)
}

func (v *LinesView) customID(action string) string {
	return fmt.Sprintf(customIDFormat, linesComponentPrefix, action, v.ID)
}

// Components builds the message component rows for the view's current
// state: backward and forward page buttons with precomputed target
// labels, and the revert button.
func (v *LinesView) Components(
	loc *Localizer,
	locale string,
) []discordgo.MessageComponent {
	bL1, bL2 := v.backwardRange()
	fL1, fL2 := v.forwardRange()

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    buttonLabel(loc, locale, bL1, bL2),
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⬅️"},
					CustomID: v.customID(linesActionBackward),
				},
				discordgo.Button{
					Label:    buttonLabel(loc, locale, fL1, fL2),
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "➡️"},
					CustomID: v.customID(linesActionForward),
				},
				discordgo.Button{
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "↩️"},
					CustomID: v.customID(linesActionRevert),
					Disabled: !v.RevertEnabled,
				},
			},
		},
	}
}

// decodeLinesCustomID splits a component custom ID into its action and
// view ID, reporting whether the ID belongs to a lines view at all.
func decodeLinesCustomID(customID string) (action string, viewID string, ok bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != linesComponentPrefix {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// linesViewRegistry holds live view state keyed by view ID. Views
// expire after a fixed timeout, matching how long the buttons stay
// usable on a message.
type linesViewRegistry struct {
	mu      sync.Mutex
	views   map[string]*LinesView
	timeout time.Duration
}

func newLinesViewRegistry(timeout time.Duration) *linesViewRegistry {
	if timeout <= 0 {
		timeout = DefaultLinesViewTimeout
	}
	return &linesViewRegistry{
		views:   map[string]*LinesView{},
		timeout: timeout,
	}
}

// Add registers a view and sweeps out any expired ones.
func (r *linesViewRegistry) Add(v *LinesView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, view := range r.views {
		if time.Since(view.CreatedAt) > r.timeout {
			delete(r.views, id)
		}
	}
	r.views[v.ID] = v
}

// Get returns the live view for id, or nil if it's unknown or expired.
func (r *linesViewRegistry) Get(id string) *LinesView {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[id]
	if !ok {
		return nil
	}
	if time.Since(view.CreatedAt) > r.timeout {
		delete(r.views, id)
		return nil
	}
	return view
}

// Remove drops a view from the registry.
func (r *linesViewRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
}

// Len returns the number of registered views, including any expired
// ones not yet swept.
func (r *linesViewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
