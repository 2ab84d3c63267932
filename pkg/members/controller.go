package members

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/call"
)

// ListDelegate is the external row-list widget boundary. The controller is
// the only writer. SortRows must sort stably.
type ListDelegate interface {
	AppendRow(row *Row)
	PrependRow(row *Row)
	RemoveRow(row *Row)
	UpdateRow(row *Row)
	SortRows(less func(a, b *Row) bool)
	RefreshRows()
	RowCount() int
	RowAt(i int) *Row
	FindRow(identity string) *Row
}

// Capabilities answers the synchronous permission queries consulted while
// building a row menu and choosing the default mute direction.
// Implementations must not call back into the controller.
type Capabilities interface {
	CanManageCall() bool
	CanRestrict(identity string) bool
	IsAdmin(identity string) bool
}

type noCapabilities struct{}

func (noCapabilities) CanManageCall() bool     { return false }
func (noCapabilities) CanRestrict(string) bool { return false }
func (noCapabilities) IsAdmin(string) bool     { return false }

// MuteRequest is an outward mute intent. The engine emits it; executing it
// (permission check, network call) is the collaborator's job.
type MuteRequest struct {
	Identity string
	Mute     bool
}

// ControllerCallback carries the outward intent signals.
type ControllerCallback struct {
	OnMuteRequest func(req MuteRequest)
	OnKickRequest func(identity string)
}

// ControllerParams configures a Controller. List is required; the rest have
// working defaults.
type ControllerParams struct {
	SelfIdentity string
	List         ListDelegate
	Capabilities Capabilities
	Strings      Strings
	Style        *Style
	Clock        clock.Clock
	Callback     ControllerCallback
}

// Controller owns the row list: it reconciles participant snapshots into
// rows, tracks the sounding set by audio source id, drives the shared frame
// clock, and reorders rows as speakers change. All mutation funnels through
// its mutex; callbacks from the session layer may arrive on any goroutine.
type Controller struct {
	mu       sync.Mutex
	clk      clock.Clock
	st       Style
	list     ListDelegate
	caps     Capabilities
	strings  Strings
	callback ControllerCallback
	self     string

	soundingRowBySsrc    map[uint32]*Row
	soundingClock        *frameClock
	soundingHideLastTime time.Time
	skipRowLevelUpdate   bool

	menu                     *RowMenu
	menuCheckRowsAfterHidden map[string]struct{}

	animationsDisabled bool
	deactivated        bool
	closed             bool
}

func NewController(p ControllerParams) *Controller {
	if p.List == nil {
		panic("members: controller requires a list delegate")
	}
	st := DefaultStyle()
	if p.Style != nil {
		st = *p.Style
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	caps := p.Capabilities
	if caps == nil {
		caps = noCapabilities{}
	}
	strs := p.Strings
	if strs == nil {
		strs = EnglishStrings{}
	}
	c := &Controller{
		clk:                      clk,
		st:                       st,
		list:                     p.List,
		caps:                     caps,
		strings:                  strs,
		callback:                 p.Callback,
		self:                     p.SelfIdentity,
		soundingRowBySsrc:        make(map[uint32]*Row),
		menuCheckRowsAfterHidden: make(map[string]struct{}),
	}
	c.soundingClock = newFrameClock(clk, st.FrameInterval.Std(), c.onFrame)
	return c
}

// Close tears the controller down: the frame clock stops and an open menu is
// detached so a late dismissal cannot re-enter the engine.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.menu != nil {
		c.menu.detach()
		c.menu = nil
	}
	c.menuCheckRowsAfterHidden = make(map[string]struct{})
	c.mu.Unlock()
	c.soundingClock.Stop()
}

// Strings returns the label source the controller renders statuses with.
func (c *Controller) Strings() Strings {
	return c.strings
}

func (c *Controller) RowCanMuteMembers() bool {
	return c.caps.CanManageCall()
}

func (c *Controller) RowUpdated(row *Row) {
	c.list.UpdateRow(row)
}

// Reconcile diffs the authoritative participant set against the current row
// list: stale non-self rows are removed, a missing self row is recreated
// (from its participant when present, in connecting display otherwise), and
// unrepresented participants get fresh rows. Running it twice with the same
// set is a no-op the second time.
func (c *Controller) Reconcile(participants []call.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	byIdentity := make(map[string]int, len(participants))
	for i := range participants {
		byIdentity[participants[i].Identity] = i
	}

	changed := false
	foundSelf := false
	for i := 0; i < c.list.RowCount(); {
		row := c.list.RowAt(i)
		if row.self {
			foundSelf = true
			i++
			continue
		}
		if _, ok := byIdentity[row.identity]; ok {
			i++
			continue
		}
		changed = true
		c.removeRowLocked(row)
	}

	if !foundSelf && c.self != "" {
		var row *Row
		if i, ok := byIdentity[c.self]; ok {
			row = c.createRowLocked(&participants[i])
		} else {
			row = c.createSelfRowLocked()
		}
		changed = true
		c.list.AppendRow(row)
	}

	for i := range participants {
		p := &participants[i]
		if c.list.FindRow(p.Identity) != nil {
			continue
		}
		changed = true
		c.list.AppendRow(c.createRowLocked(p))
	}

	if changed {
		c.list.RefreshRows()
	}
}

// ApplyUpdate applies one membership delta. At least one side must be
// present. A removal keeps the self row alive in connecting display; any
// other removal deletes the row (and its sounding-map entry) outright.
func (c *Controller) ApplyUpdate(u call.ParticipantUpdate) {
	if u.Was == nil && u.Now == nil {
		panic("members: participant update with both sides absent")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if u.Now == nil {
		row := c.list.FindRow(u.Was.Identity)
		if row == nil {
			return
		}
		if row.self {
			c.updateRowLocked(row, nil)
			return
		}
		c.removeRowLocked(row)
		c.list.RefreshRows()
		return
	}

	if row := c.list.FindRow(u.Now.Identity); row != nil {
		if u.Now.Speaking && (u.Was == nil || !u.Was.Speaking) {
			c.checkSpeakingRowPositionLocked(row)
		}
		c.updateRowLocked(row, u.Now)
		return
	}

	row := c.createRowLocked(u.Now)
	if row.speaking {
		// A fresh speaker must not pop in below the fold.
		c.list.PrependRow(row)
	} else {
		c.list.AppendRow(row)
	}
	c.list.RefreshRows()
}

// ApplyLevel feeds one raw audio level into the matching sounding row.
// Levels for source ids with no sounding row are dropped: sources routinely
// stop before their last level event arrives.
func (c *Controller) ApplyLevel(u call.LevelUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	row, ok := c.soundingRowBySsrc[u.Ssrc]
	if !ok {
		return
	}
	c.updateRowLevelLocked(row, u.Value)
}

// AddInvited appends a row for an identity invited to the call but not yet
// joined. Identities already represented are ignored.
func (c *Controller) AddInvited(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.list.FindRow(identity) != nil {
		return
	}
	row := c.createInvitedRowLocked(identity)
	c.list.AppendRow(row)
	c.list.RefreshRows()
}

// SetAnimationsDisabled and SetAppDeactivated gate the sounding visuals.
// While either flag is set, sounding rows are leveled to zero and skip
// incoming levels, and the frame clock idles out after one blob-enter
// duration.
func (c *Controller) SetAnimationsDisabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animationsDisabled = v
	c.applyGatingLocked()
}

func (c *Controller) SetAppDeactivated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivated = v
	c.applyGatingLocked()
}

// MemberCount reports the roster size, clamped to at least one.
func (c *Controller) MemberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.list.RowCount(); n > 1 {
		return n
	}
	return 1
}

// RowView is a consistent read of one row for external consumers.
type RowView struct {
	Identity string     `json:"identity"`
	Self     bool       `json:"self"`
	State    string     `json:"state"`
	Ssrc     uint32     `json:"ssrc"`
	Sounding bool       `json:"sounding"`
	Speaking bool       `json:"speaking"`
	Status   string     `json:"status"`
	Icon     IconState  `json:"icon"`
	Blob     *BlobState `json:"blob,omitempty"`
}

// Snapshot returns the current ordered roster.
func (c *Controller) Snapshot() []RowView {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	views := make([]RowView, 0, c.list.RowCount())
	for i := 0; i < c.list.RowCount(); i++ {
		row := c.list.RowAt(i)
		view := RowView{
			Identity: row.identity,
			Self:     row.self,
			State:    row.state.String(),
			Ssrc:     row.ssrc,
			Sounding: row.sounding,
			Speaking: row.speaking,
			Status:   row.StatusText(c.strings),
			Icon:     row.IconState(now),
		}
		if blob, ok := row.BlobState(); ok {
			view.Blob = &blob
		}
		views = append(views, view)
	}
	return views
}

// ToggleMuteDefault emits the default mute intent for an identity: mute when
// the actor is an admin and the row is active, otherwise unmute only if the
// row is already muted. Returns false when no such row exists or the row is
// the self row.
func (c *Controller) ToggleMuteDefault(identity string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	row := c.list.FindRow(identity)
	if row == nil || row.self {
		c.mu.Unlock()
		return false
	}
	mute := c.defaultMuteLocked(row)
	cb := c.callback.OnMuteRequest
	c.mu.Unlock()
	if cb != nil {
		cb(MuteRequest{Identity: identity, Mute: mute})
	}
	return true
}

// RequestRemove emits a removal intent for an identity.
func (c *Controller) RequestRemove(identity string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	row := c.list.FindRow(identity)
	if row == nil || row.self {
		c.mu.Unlock()
		return false
	}
	cb := c.callback.OnKickRequest
	c.mu.Unlock()
	if cb != nil {
		cb(identity)
	}
	return true
}

func (c *Controller) defaultMuteLocked(row *Row) bool {
	if c.caps.IsAdmin(row.identity) {
		return row.state == StateActive
	}
	return row.state != StateMuted
}

func (c *Controller) createRowLocked(p *call.Participant) *Row {
	row := newRow(c, c.clk, c.st, p.Identity, p.Identity == c.self)
	c.updateRowLocked(row, p)
	return row
}

func (c *Controller) createSelfRowLocked() *Row {
	row := newRow(c, c.clk, c.st, c.self, true)
	c.updateRowLocked(row, nil)
	return row
}

func (c *Controller) createInvitedRowLocked(identity string) *Row {
	row := newRow(c, c.clk, c.st, identity, identity == c.self)
	c.updateRowLocked(row, nil)
	return row
}

// updateRowLocked runs the row state machine and keeps the sounding map and
// frame clock in step with the result.
func (c *Controller) updateRowLocked(row *Row, p *call.Participant) {
	wasSounding := row.sounding
	wasSsrc := row.ssrc
	row.setSkipLevelUpdate(c.skipRowLevelUpdate)
	row.updateState(p)
	nowSounding := row.sounding
	nowSsrc := row.ssrc

	wasEmpty := len(c.soundingRowBySsrc) == 0
	if wasSsrc == nowSsrc {
		if nowSounding != wasSounding {
			if nowSounding {
				c.soundingRowBySsrc[nowSsrc] = row
			} else {
				delete(c.soundingRowBySsrc, nowSsrc)
			}
		}
	} else {
		delete(c.soundingRowBySsrc, wasSsrc)
		if nowSounding {
			if nowSsrc == 0 {
				panic("members: sounding row with zero source id")
			}
			c.soundingRowBySsrc[nowSsrc] = row
		}
	}
	nowEmpty := len(c.soundingRowBySsrc) == 0
	if wasEmpty && !nowEmpty {
		c.soundingClock.Start()
	} else if nowEmpty && !wasEmpty {
		c.soundingClock.Stop()
	}

	c.list.UpdateRow(row)
}

func (c *Controller) removeRowLocked(row *Row) {
	wasEmpty := len(c.soundingRowBySsrc) == 0
	delete(c.soundingRowBySsrc, row.ssrc)
	if !wasEmpty && len(c.soundingRowBySsrc) == 0 {
		c.soundingClock.Stop()
	}
	c.list.RemoveRow(row)
}

func (c *Controller) updateRowLevelLocked(row *Row, level float64) {
	if c.skipRowLevelUpdate {
		return
	}
	row.updateLevel(level)
}

// checkSpeakingRowPositionLocked decides whether a row that started speaking
// needs to bubble up. While a menu is open the identity is queued for replay
// instead, so the row under the pointer does not move.
func (c *Controller) checkSpeakingRowPositionLocked(row *Row) {
	if c.menu != nil {
		c.menuCheckRowsAfterHidden[row.identity] = struct{}{}
		return
	}
	count := c.list.RowCount()
	for i := 0; i < count; i++ {
		above := c.list.RowAt(i)
		if above == row {
			// All rows above are speaking already.
			return
		}
		if !above.speaking {
			break
		}
	}
	bucket := func(r *Row) int {
		if r == row {
			return 0
		}
		if r.speaking {
			return 1
		}
		return 2
	}
	c.list.SortRows(func(a, b *Row) bool {
		return bucket(a) < bucket(b)
	})
}

func (c *Controller) applyGatingLocked() {
	hide := c.animationsDisabled || c.deactivated
	if !(hide && !c.soundingHideLastTime.IsZero()) {
		if hide {
			c.soundingHideLastTime = c.clk.Now()
		} else {
			c.soundingHideLastTime = time.Time{}
		}
	}
	for _, row := range c.soundingRowBySsrc {
		if hide {
			c.updateRowLevelLocked(row, 0)
		}
		row.setSkipLevelUpdate(hide)
	}
	if !hide && len(c.soundingRowBySsrc) > 0 {
		c.soundingClock.Start()
	}
	c.skipRowLevelUpdate = hide
}

// onFrame is the frame clock callback: it advances every sounding row's blob
// animation and requests its repaint. Returning false stops the clock, which
// happens once the gating grace window has fully elapsed.
func (c *Controller) onFrame(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last := c.soundingHideLastTime; !last.IsZero() &&
		now.Sub(last) >= c.st.BlobsEnterDuration.Std() {
		return false
	}
	for _, row := range c.soundingRowBySsrc {
		row.updateBlobAnimation(now)
		c.list.UpdateRow(row)
	}
	return true
}
